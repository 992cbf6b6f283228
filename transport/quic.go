// Package transport wraps github.com/quic-go/quic-go behind the narrow
// collaborator interface the session/server/client layers need: accept a
// connection, open/accept one bidirectional control stream per
// connection, and send/receive unreliable datagrams for render updates
// (spec §6 "Transport").
package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated on every ZRP QUIC
// connection.
const ALPN = "zrp/1"

var quicConfig = &quic.Config{
	MaxIdleTimeout:  60 * time.Second,
	KeepAlivePeriod: 15 * time.Second,
	EnableDatagrams: true,
}

// Stream is the reliable, ordered control channel for one connection.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Conn is one QUIC connection: the control stream plus unreliable
// datagrams.
type Conn interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	SendDatagram(b []byte) error
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	RemoteAddr() string
	Close() error
}

type conn struct {
	qc quic.Connection
}

func (c *conn) OpenStream(ctx context.Context) (Stream, error) {
	st, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *conn) AcceptStream(ctx context.Context) (Stream, error) {
	st, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *conn) SendDatagram(b []byte) error {
	return c.qc.SendDatagram(b)
}

func (c *conn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.qc.ReceiveDatagram(ctx)
}

func (c *conn) RemoteAddr() string { return c.qc.RemoteAddr().String() }

func (c *conn) Close() error { return c.qc.CloseWithError(0, "closed") }

// Listener accepts inbound QUIC connections on one bound address.
type Listener struct {
	ln *quic.Listener
}

// Listen binds addr and returns a Listener. If certFile/keyFile are both
// empty, a self-signed certificate is generated for the listener's
// lifetime (fine for same-host/dev deployments; production deployments
// should supply a real certificate).
func Listen(addr, certFile, keyFile string) (*Listener, error) {
	tlsConf, err := serverTLSConfig(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until the next inbound connection completes its
// handshake.
func (l *Listener) Accept(ctx context.Context) (Conn, error) {
	qc, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{qc: qc}, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the bound local address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Dial connects to a ZRP server at addr. insecureSkipVerify is exposed
// (rather than hardcoded) so a client can opt into verifying a real
// certificate when one is deployed; dev/same-host usage typically passes
// true.
func Dial(ctx context.Context, addr string, insecureSkipVerify bool) (Conn, error) {
	tlsConf := &tls.Config{
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: insecureSkipVerify,
	}
	qc, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &conn{qc: qc}, nil
}

func serverTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		cert, err := generateSelfSigned()
		if err != nil {
			return nil, err
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{ALPN}}, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load cert/key: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{ALPN}}, nil
}

func generateSelfSigned() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	serialNumber, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"zrp"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
