package transport

import (
	"crypto/subtle"
	"errors"
	"net"

	"github.com/meshpact/trustfabric/crypto"
)

var errCouldNotVerify = errors.New("could not verify communication")

// Handshake, between caller and called:
//
//  1. caller -> called: caller token, random nonce.
//  2. called checks the caller token against its ValidateConnection policy,
//     then replies: its own token, a signature of the caller's nonce, and a
//     fresh nonce of its own.
//  3. caller verifies the signature against the token it expected, then
//     signs the called's nonce and sends the signature back.
//  4. called verifies that signature; the connection is now live.
//
// Adapted from the teacher's socket handshake; unchanged in shape, renamed
// to this module's naming.

func readFramed(conn net.Conn) ([]byte, error) {
	length := make([]byte, 1)
	if n, err := conn.Read(length); n != 1 {
		return nil, err
	}
	msg := make([]byte, length[0])
	if n, err := conn.Read(msg); n != int(length[0]) {
		return nil, err
	}
	return msg, nil
}

func writeFramed(conn net.Conn, msg []byte) error {
	if len(msg) > 256 {
		return errors.New("handshake message too large to send")
	}
	payload := append([]byte{byte(len(msg))}, msg...)
	if n, err := conn.Write(payload); n != len(payload) {
		return err
	}
	return nil
}

func performClientHandshake(conn net.Conn, prvKey crypto.PrivateKey, remote crypto.Token) (*Connection, error) {
	pubKey := prvKey.PublicKey()
	nonce := crypto.Nonce()
	if err := writeFramed(conn, append(pubKey[:], nonce...)); err != nil {
		return nil, err
	}

	resp, err := readFramed(conn)
	if err != nil {
		return nil, err
	}
	if len(resp) != crypto.TokenSize+crypto.SignatureSize+crypto.NonceSize {
		return nil, errCouldNotVerify
	}
	remoteToken := resp[0:crypto.TokenSize]
	var remoteSignature crypto.Signature
	copy(remoteSignature[:], resp[crypto.TokenSize:crypto.TokenSize+crypto.SignatureSize])
	remoteNonce := resp[crypto.TokenSize+crypto.SignatureSize:]
	if subtle.ConstantTimeCompare(remoteToken, remote[:]) != 1 {
		return nil, errCouldNotVerify
	}
	if !remote.Verify(nonce, remoteSignature) {
		return nil, errCouldNotVerify
	}
	signature := prvKey.Sign(remoteNonce)
	if err := writeFramed(conn, signature[:]); err != nil {
		return nil, err
	}
	return &Connection{Token: remote, conn: conn, key: prvKey, Live: true}, nil
}

// PromoteConnection performs the server side of the handshake over an
// already-accepted net.Conn, consulting validator to decide whether the
// caller's token is welcome.
func PromoteConnection(conn net.Conn, prvKey crypto.PrivateKey, validator ValidateConnection) (*Connection, error) {
	resp, err := readFramed(conn)
	if err != nil {
		return nil, err
	}
	if len(resp) != crypto.TokenSize+crypto.NonceSize {
		return nil, errCouldNotVerify
	}
	var remoteToken crypto.Token
	copy(remoteToken[:], resp[0:crypto.TokenSize])
	if ok := <-validator.ValidateConnection(remoteToken); !ok {
		conn.Close()
		return nil, errCouldNotVerify
	}

	nonce := resp[crypto.TokenSize:]
	signature := prvKey.Sign(nonce)
	token := prvKey.PublicKey()
	newNonce := crypto.Nonce()

	reply := append(append(token[:], signature[:]...), newNonce...)
	if err := writeFramed(conn, reply); err != nil {
		return nil, err
	}

	resp, err = readFramed(conn)
	if err != nil {
		return nil, err
	}
	if len(resp) != crypto.SignatureSize {
		return nil, errCouldNotVerify
	}
	var callerSignature crypto.Signature
	copy(callerSignature[:], resp)
	if !remoteToken.Verify(newNonce, callerSignature) {
		return nil, errCouldNotVerify
	}
	return &Connection{Token: remoteToken, conn: conn, key: prvKey, Live: true}, nil
}
