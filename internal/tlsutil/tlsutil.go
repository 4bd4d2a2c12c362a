// Package tlsutil builds the tls.Config and quic.Config pairs the server and
// client sides need to dial or listen over QUIC, handed to quic.Dial and
// quic.Listen respectively.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the protocol identifier negotiated on every Selium QUIC connection.
const ALPN = "selium/1"

// KeepAlive is the default QUIC keep-alive interval, overridable per
// connection through QUICConfig's keepAlive argument (on the client side,
// ClientBuilder.KeepAlive). The keep_alive_ms field of RegisterPublisher/
// RegisterSubscriber frames does not change it.
const KeepAlive = 15 * time.Second

// ServerConfig loads a certificate/key pair for the listening side.
func ServerConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load server keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientConfig builds the dialing side's tls.Config. If caFile is empty, the
// host's root CA pool is used; otherwise caFile is trusted exclusively, the
// expected shape for a privately operated broker with no PKI or federation
// to pin a consensus authority against.
func ClientConfig(caFile, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		NextProtos: []string{ALPN},
		MinVersion: tls.VersionTLS13,
		ServerName: serverName,
	}
	if caFile == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsutil: no certificates parsed from %s", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// QUICConfig returns the quic.Config shared by client and server, carrying
// keepAlive (0 selects KeepAlive).
func QUICConfig(keepAlive time.Duration) *quic.Config {
	if keepAlive <= 0 {
		keepAlive = KeepAlive
	}
	return &quic.Config{
		KeepAlivePeriod: keepAlive,
	}
}
