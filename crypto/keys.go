package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
)

const (
	// TokenSize is the byte length of a public key.
	TokenSize = ed25519.PublicKeySize
	// PrivateKeySize is the byte length of a private key (seed + public key,
	// matching ed25519's expanded representation).
	PrivateKeySize = ed25519.PrivateKeySize
	// SignatureSize is the byte length of a signature.
	SignatureSize = ed25519.SignatureSize
	// Size is the byte length of a Hash, kept beside the other sizes so wire
	// code finds every fixed width in one place.
	Size = 32
)

// Token is a node's public key.
type Token [TokenSize]byte

// PrivateKey is a node's private signing key.
type PrivateKey [PrivateKeySize]byte

// Signature is an ed25519 signature over a digest.
type Signature [SignatureSize]byte

var ZeroToken Token
var ZeroPrivateKey PrivateKey
var ZeroSignature Signature

// Equal reports whether two tokens are the same public key.
func (t Token) Equal(other Token) bool {
	return t == other
}

// String renders the token as base64 for logs and JSON.
func (t Token) String() string {
	return base64.StdEncoding.EncodeToString(t[:])
}

// MarshalText renders the token as base64, so a Token embedded in any JSON
// value (a topology.Member, a protocol.Signature) is a compact string
// rather than an array of small integers.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses the base64 form produced by MarshalText.
func (t *Token) UnmarshalText(text []byte) error {
	data, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil || len(data) != TokenSize {
		return ErrPublicKeyParse
	}
	copy(t[:], data)
	return nil
}

// MarshalText renders the signature as base64.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(s[:])), nil
}

// UnmarshalText parses the base64 form produced by MarshalText.
func (s *Signature) UnmarshalText(text []byte) error {
	data, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil || len(data) != SignatureSize {
		return ErrPublicKeyParse
	}
	copy(s[:], data)
	return nil
}

// Verify checks a signature over msg under this token.
func (t Token) Verify(msg []byte, signature Signature) bool {
	return ed25519.Verify(t[:], msg, signature[:])
}

// PublicKey derives the Token associated with a private key.
func (p PrivateKey) PublicKey() Token {
	var token Token
	copy(token[:], ed25519.PrivateKey(p[:]).Public().(ed25519.PublicKey))
	return token
}

// Sign signs msg with this private key.
func (p PrivateKey) Sign(msg []byte) Signature {
	var signature Signature
	copy(signature[:], ed25519.Sign(ed25519.PrivateKey(p[:]), msg))
	return signature
}

// PrivateKeyFromSeed expands a 32-byte seed into a full ed25519 private key.
func PrivateKeyFromSeed(seed [32]byte) PrivateKey {
	var key PrivateKey
	copy(key[:], ed25519.NewKeyFromSeed(seed[:]))
	return key
}

// RandomAsymetricKey generates a fresh token/private key pair.
func RandomAsymetricKey() (Token, PrivateKey) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	var token Token
	var key PrivateKey
	copy(token[:], public)
	copy(key[:], private)
	return token, key
}

// NonceSize is the byte length of a handshake nonce.
const NonceSize = 32

// Nonce generates a fresh random nonce for use in a handshake challenge.
func Nonce() []byte {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		panic(err)
	}
	return nonce
}

// DecodeToken parses a base64-encoded token.
func DecodeToken(text string) (Token, error) {
	var token Token
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil || len(data) != TokenSize {
		return token, ErrPublicKeyParse
	}
	copy(token[:], data)
	return token, nil
}
