package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed certificate and its key to dir.
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "sepal-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return certFile, keyFile
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled", cfg: Config{}},
		{name: "cert and key", cfg: Config{Enabled: true, CertFile: certFile, KeyFile: keyFile}},
		{name: "with CA", cfg: Config{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: certFile}},
		{name: "missing key path", cfg: Config{Enabled: true, CertFile: certFile}, wantErr: true},
		{name: "nonexistent CA", cfg: Config{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: filepath.Join(dir, "nope.pem")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewServerTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)

	t.Run("disabled", func(t *testing.T) {
		cfg, err := NewServerTLSConfig(Config{})
		if err != nil || cfg != nil {
			t.Errorf("NewServerTLSConfig() = %v, %v; want nil, nil", cfg, err)
		}
	})

	t.Run("server only", func(t *testing.T) {
		cfg, err := NewServerTLSConfig(Config{Enabled: true, CertFile: certFile, KeyFile: keyFile})
		if err != nil {
			t.Fatalf("NewServerTLSConfig() error = %v", err)
		}
		if len(cfg.Certificates) != 1 {
			t.Errorf("len(Certificates) = %d, want 1", len(cfg.Certificates))
		}
		if cfg.MinVersion != cryptotls.VersionTLS13 {
			t.Errorf("MinVersion = %x, want TLS 1.3", cfg.MinVersion)
		}
		if cfg.ClientAuth != cryptotls.NoClientCert {
			t.Errorf("ClientAuth = %v, want NoClientCert", cfg.ClientAuth)
		}
	})

	t.Run("mutual", func(t *testing.T) {
		c := Config{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: certFile}
		if !c.MutualTLS() {
			t.Error("MutualTLS() = false, want true")
		}
		cfg, err := NewServerTLSConfig(c)
		if err != nil {
			t.Fatalf("NewServerTLSConfig() error = %v", err)
		}
		if cfg.ClientAuth != cryptotls.RequireAndVerifyClientCert {
			t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", cfg.ClientAuth)
		}
		if cfg.ClientCAs == nil {
			t.Error("ClientCAs not set")
		}
	})

	t.Run("invalid CA", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.pem")
		if err := os.WriteFile(bad, []byte("not a cert"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		_, err := NewServerTLSConfig(Config{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: bad})
		if err == nil {
			t.Error("expected error for invalid CA, got nil")
		}
	})

	t.Run("mismatched key", func(t *testing.T) {
		_, otherKey := writeSelfSigned(t, t.TempDir())
		_, err := NewServerTLSConfig(Config{Enabled: true, CertFile: certFile, KeyFile: otherKey})
		if err == nil {
			t.Error("expected error for mismatched key pair, got nil")
		}
	})
}
