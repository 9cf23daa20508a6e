package transport

import (
	"log/slog"
	"net"

	"github.com/meshpact/trustfabric/crypto"
)

// Server accepts incoming TCP connections, promotes them through the
// handshake, and hands each live Connection to Accepted.
type Server struct {
	credentials crypto.PrivateKey
	validator   ValidateConnection
	listener    net.Listener
	Accepted    chan *Connection
}

// Listen opens address and returns a Server whose Accepted channel receives
// every connection that completes the handshake and clears validator.
func Listen(address string, credentials crypto.PrivateKey, validator ValidateConnection) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	server := &Server{
		credentials: credentials,
		validator:   validator,
		listener:    listener,
		Accepted:    make(chan *Connection),
	}
	go server.run()
	return server, nil
}

func (s *Server) run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			slog.Info("transport: listener closed", "error", err)
			return
		}
		go func() {
			live, err := PromoteConnection(conn, s.credentials, s.validator)
			if err != nil {
				slog.Info("transport: handshake failed", "error", err)
				conn.Close()
				return
			}
			slog.Info("transport: accepted connection", "peer", crypto.EncodeHash(crypto.HashToken(live.Token)))
			s.Accepted <- live
		}()
	}
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() error {
	return s.listener.Close()
}

// Addr returns the address the listener is bound to, useful when Listen was
// called with a ":0" port and the caller needs to know which one was
// assigned.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
