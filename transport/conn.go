// Package transport implements a signed, unencrypted TCP channel between
// nodes and a gossip-style pusher that fans a record out to reachable peers.
// It is a concrete (but entirely optional) host for the participant
// package's Storage.PushPeerRecord capability; nothing in protocol or participant
// imports it.
package transport

import (
	"errors"
	"net"

	"github.com/meshpact/trustfabric/crypto"
)

var ErrMessageTooLarge = errors.New("message size cannot be larger than 2^40-1 bytes")
var ErrInvalidSignature = errors.New("signature is invalid")
var ErrMessageTooShort = errors.New("message too short to carry a signature")

// Connection is a signed TCP channel: every message sent over it is signed
// by the sender's private key, and every message read is verified against
// the remote token fixed at handshake time.
type Connection struct {
	Token crypto.Token
	key   crypto.PrivateKey
	conn  net.Conn
	Live  bool
}

// Dial connects to address and performs the client side of the handshake,
// verifying that the remote end controls remote.
func Dial(address string, credentials crypto.PrivateKey, remote crypto.Token) (*Connection, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return performClientHandshake(conn, credentials, remote)
}

// Send signs msg and writes it, length-prefixed, to the connection.
func (c *Connection) Send(msg []byte) error {
	lengthWithSignature := len(msg) + crypto.SignatureSize
	if lengthWithSignature > 1<<40-1 {
		return ErrMessageTooLarge
	}
	header := []byte{
		byte(lengthWithSignature), byte(lengthWithSignature >> 8),
		byte(lengthWithSignature >> 16), byte(lengthWithSignature >> 24),
		byte(lengthWithSignature >> 32),
	}
	signature := c.key.Sign(msg)
	payload := append(append(header, msg...), signature[:]...)
	if n, err := c.conn.Write(payload); n != len(payload) {
		return err
	}
	return nil
}

func (c *Connection) readFrame() ([]byte, error) {
	header := make([]byte, 5)
	if n, err := c.conn.Read(header); n != 5 {
		return nil, err
	}
	length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16 |
		int(header[3])<<24 | int(header[4])<<32
	msg := make([]byte, length)
	if n, err := c.conn.Read(msg); n != length {
		return nil, err
	}
	return msg, nil
}

// Read blocks for the next message and verifies its signature.
func (c *Connection) Read() ([]byte, error) {
	frame, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) < crypto.SignatureSize {
		return nil, ErrMessageTooShort
	}
	msg := frame[:len(frame)-crypto.SignatureSize]
	var signature crypto.Signature
	copy(signature[:], frame[len(frame)-crypto.SignatureSize:])
	if !c.Token.Verify(msg, signature) {
		return nil, ErrInvalidSignature
	}
	return msg, nil
}

// Shutdown closes the underlying socket.
func (c *Connection) Shutdown() {
	c.conn.Close()
}
