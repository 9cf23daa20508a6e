package transport

import (
	"testing"
	"time"

	"github.com/meshpact/trustfabric/crypto"
)

func TestListenDialSendRead(t *testing.T) {
	_, serverKey := crypto.RandomAsymetricKey()
	_, clientKey := crypto.RandomAsymetricKey()

	server, err := Listen("127.0.0.1:0", serverKey, AcceptAllConnections)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Shutdown()

	conn, err := Dial(server.Addr().String(), clientKey, serverKey.PublicKey())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Shutdown()

	select {
	case accepted := <-server.Accepted:
		if !accepted.Token.Equal(clientKey.PublicKey()) {
			t.Fatalf("accepted connection has wrong token")
		}
		if err := accepted.Send([]byte("hello")); err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}

	msg, err := conn.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("got %q, want %q", msg, "hello")
	}
}

func TestPromoteConnectionRejectsUnknownToken(t *testing.T) {
	_, serverKey := crypto.RandomAsymetricKey()
	_, clientKey := crypto.RandomAsymetricKey()
	_, otherKey := crypto.RandomAsymetricKey()

	server, err := Listen("127.0.0.1:0", serverKey, ValidateSingleConnection(otherKey.PublicKey()))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Shutdown()

	if _, err := Dial(server.Addr().String(), clientKey, serverKey.PublicKey()); err == nil {
		t.Fatal("expected dial to fail against a validator that rejects this token")
	}
}

func TestAcceptValidConnectionsAddRemove(t *testing.T) {
	_, tokenA := crypto.RandomAsymetricKey()
	_, tokenB := crypto.RandomAsymetricKey()
	validator := NewValidConnections([]crypto.Token{tokenA.PublicKey()})

	if ok := <-validator.ValidateConnection(tokenB.PublicKey()); ok {
		t.Fatal("expected tokenB to be rejected before Add")
	}
	validator.Add(tokenB.PublicKey())
	if ok := <-validator.ValidateConnection(tokenB.PublicKey()); !ok {
		t.Fatal("expected tokenB to be accepted after Add")
	}
	validator.Remove(tokenB.PublicKey())
	if ok := <-validator.ValidateConnection(tokenB.PublicKey()); ok {
		t.Fatal("expected tokenB to be rejected after Remove")
	}
}

func TestPusherPushUnreachablePeerDoesNotBlock(t *testing.T) {
	_, credentials := crypto.RandomAsymetricKey()
	pusher := NewPusher(credentials)
	_, unreachable := crypto.RandomAsymetricKey()

	done := make(chan struct{})
	go func() {
		pusher.Push([]byte("msg"), []Peer{{Address: "127.0.0.1:1", Token: unreachable.PublicKey()}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Push did not return for an unreachable peer")
	}
}
