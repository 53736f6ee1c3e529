// Package tls builds the server-side TLS configuration shared by the HTTP
// and gRPC listeners.
//
// TLS is optional. When a CA file is given, clients must present a
// certificate signed by that CA (mutual TLS). All configurations enforce
// TLS 1.3.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds TLS certificate file paths for the server listeners.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	// CAFile is optional; when set, client certificates are required.
	CAFile string
}

// Validate checks that the configured files exist when TLS is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.CertFile == "" || c.KeyFile == "" {
		return errors.New("tls enabled but cert/key files not specified")
	}

	paths := []string{c.CertFile, c.KeyFile}
	if c.CAFile != "" {
		paths = append(paths, c.CAFile)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}

	return nil
}

// MutualTLS reports whether client certificates are verified.
func (c Config) MutualTLS() bool {
	return c.Enabled && c.CAFile != ""
}

// NewServerTLSConfig loads the server key pair and, when a CA file is
// configured, requires and verifies client certificates against it.
// It returns nil when TLS is disabled.
func NewServerTLSConfig(c Config) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	if c.CAFile == "" {
		return cfg, nil
	}

	caCert, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	cfg.ClientCAs = caCertPool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}
