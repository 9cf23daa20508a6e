package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/meshpact/trustfabric/crypto"
)

// saltSize and nonceSize size the header of an encrypted key file: a random
// salt folded into the passphrase-derived key, and the AES-GCM nonce for
// the single seal this file ever holds.
const (
	saltSize  = 16
	nonceSize = 12
)

var errBadPassphrase = errors.New("could not decrypt private key: wrong passphrase or corrupt file")

// readPassword prompts phrase on stdout and reads a line from the terminal
// without echoing it, retrying until the entry is non-empty. Grounded in
// the teacher's cmd/safe/main.go readPassword.
func readPassword(phrase string) []byte {
	fmt.Println(phrase)
	for {
		password, err := term.ReadPassword(0)
		if err != nil {
			fmt.Printf("error reading password: %v\n", err)
			os.Exit(1)
		}
		if len(password) == 0 {
			fmt.Println("try again:")
			continue
		}
		return password
	}
}

// deriveKey folds a passphrase and salt into a 32-byte AES-256 key. The pack
// carries no directly-imported passphrase-based-encryption library (the
// teacher's own crypto/scrypt wrapper was never retrieved), so this uses
// stdlib crypto/sha256 as the key derivation step; see DESIGN.md.
func deriveKey(passphrase, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write(passphrase)
	return h.Sum(nil)
}

// sealSeed encrypts a private key's 32-byte seed under passphrase, prefixing
// the ciphertext with a fresh random salt and nonce so sealSeed never
// needs a caller-supplied one.
func sealSeed(seed [32]byte, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, seed[:], nil)
	out := make([]byte, 0, saltSize+nonceSize+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// openSeed reverses sealSeed.
func openSeed(data []byte, passphrase []byte) ([32]byte, error) {
	var seed [32]byte
	if len(data) < saltSize+nonceSize {
		return seed, errBadPassphrase
	}
	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	sealed := data[saltSize+nonceSize:]
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return seed, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return seed, err
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil || len(plain) != 32 {
		return seed, errBadPassphrase
	}
	copy(seed[:], plain)
	return seed, nil
}

// genKey generates a fresh key pair, prompts twice for a matching
// passphrase, and writes an encrypted private key file plus a plaintext
// PEM-encoded public key file alongside it.
func genKey(path string) error {
	token, key := crypto.RandomAsymetricKey()
	passphrase := readPassword("Enter a pass phrase to protect the new key:")
	confirm := readPassword("Confirm pass phrase:")
	if string(passphrase) != string(confirm) {
		return errors.New("pass phrases did not match")
	}
	var seed [32]byte
	copy(seed[:], key[:32])
	sealed, err := sealSeed(seed, passphrase)
	if err != nil {
		return fmt.Errorf("could not encrypt private key: %v", err)
	}
	if err := os.WriteFile(path, sealed, 0600); err != nil {
		return fmt.Errorf("could not write private key file: %v", err)
	}
	pubPEM, err := crypto.EncodePEMPublicKey(token)
	if err != nil {
		return fmt.Errorf("could not encode public key: %v", err)
	}
	if err := os.WriteFile(path+".pub", pubPEM, 0644); err != nil {
		return fmt.Errorf("could not write public key file: %v", err)
	}
	fmt.Printf("generated key pair for token %s\n", token.String())
	return nil
}

// loadKey opens the encrypted private key file at path, prompting for the
// pass phrase that unlocks it.
func loadKey(path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return crypto.ZeroPrivateKey, fmt.Errorf("could not read private key file: %v", err)
	}
	passphrase := readPassword("Enter pass phrase to unlock the node key:")
	seed, err := openSeed(data, passphrase)
	if err != nil {
		return crypto.ZeroPrivateKey, err
	}
	return crypto.PrivateKeyFromSeed(seed), nil
}
