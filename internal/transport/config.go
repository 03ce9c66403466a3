// Package transport configures and drives the pooled HTTP client the
// dispatcher uses to execute one request at a time. It generalizes the
// teacher's ad hoc *http.Transport clone in runner.NewRunner into the full
// TLS/HTTP-version/DNS/proxy/connect-to policy surface §4.2 requires.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"
)

// Config mirrors the HTTP-transport-relevant fields of AttackConfig (§3).
// It is immutable once built and shared read-only by every worker, exactly
// as the specification requires.
type Config struct {
	KeepAlive      bool
	HTTP2          bool
	H2C            bool
	InsecureTLS    bool
	Redirects      int // -1 = do not follow; a follow attempt still counts as success
	MaxBody        int64 // -1 = unlimited
	MaxConnsPerHost int
	ConnectTo      map[string]string // "host:port" -> "host:port", consulted before DNS
	Resolvers      []string          // DNS server addresses, e.g. "1.1.1.1:53"
	RootCerts      []string          // paths to PEM files
	ClientCertFile string
	ClientKeyFile  string
	UnixSocket     string
	LocalAddr      string
	ProxyHeaders   map[string]string
	Chunked        bool
	HTTPTimeout    time.Duration // per-HTTP-exchange ceiling
}

// buildTLSConfig assembles the *tls.Config for InsecureTLS, custom root CAs,
// and an optional client certificate, the same inputs the teacher hard-coded
// as InsecureSkipVerify: true in NewRunner, generalized to the full policy.
func (c Config) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: c.InsecureTLS}

	if len(c.RootCerts) > 0 {
		pool := x509.NewCertPool()
		for _, path := range c.RootCerts {
			pem, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("transport: reading root cert %q: %w", path, err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("transport: root cert %q contains no usable certificates", path)
			}
		}
		tlsCfg.RootCAs = pool
	}

	if c.ClientCertFile != "" || c.ClientKeyFile != "" {
		if c.ClientCertFile == "" || c.ClientKeyFile == "" {
			return nil, fmt.Errorf("transport: both client cert and key must be supplied together")
		}
		cert, err := tls.LoadX509KeyPair(c.ClientCertFile, c.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// buildDialer assembles the *net.Dialer used for plain TCP/Unix connects,
// honoring LocalAddr when set.
func (c Config) buildDialer() (*net.Dialer, error) {
	d := &net.Dialer{Timeout: 30 * time.Second}
	if c.LocalAddr != "" {
		addr, err := net.ResolveTCPAddr("tcp", c.LocalAddr)
		if err != nil {
			return nil, fmt.Errorf("transport: resolving local_addr %q: %w", c.LocalAddr, err)
		}
		d.LocalAddr = addr
	}
	if len(c.Resolvers) > 0 {
		resolvers := c.Resolvers
		d.Resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var lastErr error
				for _, server := range resolvers {
					conn, err := (&net.Dialer{Timeout: 5 * time.Second}).DialContext(ctx, network, server)
					if err == nil {
						return conn, nil
					}
					lastErr = err
				}
				return nil, lastErr
			},
		}
	}
	return d, nil
}
