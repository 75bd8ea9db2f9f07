package transport_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/wcfb/reactor/pkg/transport"
)

func generateTestCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "test.local",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  privateKey,
		Leaf:        cert,
	}
}

// startTLSServer starts a loopback TLS server offering the given ALPN protocols.
func startTLSServer(t *testing.T, alpn []string) net.Listener {
	t.Helper()

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{generateTestCertificate(t)},
		NextProtos:   alpn,
	}

	listener, err := tls.Listen("tcp", "127.0.0.1:0", tlsConfig)
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				// Complete the handshake, then hold the connection open
				if tlsConn, ok := c.(*tls.Conn); ok {
					tlsConn.Handshake()
				}
				buf := make([]byte, 1024)
				for {
					if _, err := c.Read(buf); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return listener
}

func endpointOf(t *testing.T, listener net.Listener) transport.Endpoint {
	t.Helper()
	ep, err := transport.ParseEndpoint(listener.Addr().String())
	if err != nil {
		t.Fatalf("ParseEndpoint() error = %v", err)
	}
	return ep
}

func TestNetDialerPlaintext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	dialer := transport.NewNetDialer(transport.DefaultSocketOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialer.Dial(ctx, endpointOf(t, listener))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case serverSide := <-accepted:
		serverSide.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection")
	}
}

func TestNetDialerRefused(t *testing.T) {
	// Grab a free port and close the listener so nothing is there
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ep := endpointOf(t, listener)
	listener.Close()

	dialer := transport.NewNetDialer(transport.DefaultSocketOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := dialer.Dial(ctx, ep); err == nil {
		t.Fatal("Dial() to closed port should fail")
	}
}

func TestTLSDialerNegotiatesTLS13(t *testing.T) {
	listener := startTLSServer(t, []string{transport.ALPNProtocol})

	dialer, err := transport.NewTLSDialer(transport.DefaultSocketOptions(), &transport.TLSConfig{
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("NewTLSDialer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialer.Dial(ctx, endpointOf(t, listener))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		t.Fatalf("Dial() returned %T, want *tls.Conn", conn)
	}

	state := tlsConn.ConnectionState()
	if state.Version != tls.VersionTLS13 {
		t.Errorf("TLS version = %x, want TLS 1.3", state.Version)
	}
	if state.NegotiatedProtocol != transport.ALPNProtocol {
		t.Errorf("ALPN = %q, want %q", state.NegotiatedProtocol, transport.ALPNProtocol)
	}
}

func TestTLSDialerRejectsWrongALPN(t *testing.T) {
	// Server that does not offer the reactor protocol
	listener := startTLSServer(t, []string{"other/1"})

	dialer, err := transport.NewTLSDialer(transport.DefaultSocketOptions(), &transport.TLSConfig{
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("NewTLSDialer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := dialer.Dial(ctx, endpointOf(t, listener)); err == nil {
		t.Fatal("Dial() should fail when ALPN cannot be negotiated")
	}
}

func TestNewClientTLSConfigRequiresConfig(t *testing.T) {
	if _, err := transport.NewClientTLSConfig(nil); err == nil {
		t.Error("NewClientTLSConfig(nil) should fail")
	}
}

func TestLoadTLSFilesMissing(t *testing.T) {
	if _, err := transport.LoadTLSFiles("", "", "/nonexistent/ca.pem"); err == nil {
		t.Error("LoadTLSFiles() with missing CA file should fail")
	} else if !strings.Contains(err.Error(), "read CA file") {
		t.Errorf("unexpected error: %v", err)
	}
}
