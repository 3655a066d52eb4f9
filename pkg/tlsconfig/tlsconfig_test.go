package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed CA certificate and key and returns their paths
func writeSelfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "smartband-test"},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestLoadServerTLS(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)

	tests := []struct {
		name       string
		caFile     string
		wantAuth   tls.ClientAuthType
		wantClient bool
	}{
		{"server only", "", tls.NoClientCert, false},
		{"mutual TLS", certFile, tls.RequireAndVerifyClientCert, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadServerTLS(certFile, keyFile, tt.caFile)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cfg.Certificates) != 1 {
				t.Errorf("expected one certificate, got %d", len(cfg.Certificates))
			}
			if cfg.ClientAuth != tt.wantAuth {
				t.Errorf("expected client auth %v, got %v", tt.wantAuth, cfg.ClientAuth)
			}
			if (cfg.ClientCAs != nil) != tt.wantClient {
				t.Errorf("unexpected ClientCAs %v", cfg.ClientCAs)
			}
		})
	}
}

func TestLoadClientTLS(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)

	cfg, err := LoadClientTLS("", "", certFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RootCAs == nil || len(cfg.Certificates) != 0 {
		t.Errorf("expected CA-only client config, got %+v", cfg)
	}

	cfg, err = LoadClientTLS(certFile, keyFile, certFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected client certificate, got %d", len(cfg.Certificates))
	}
}

func TestLoadErrors(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadServerTLS("missing.pem", keyFile, ""); err == nil {
		t.Error("expected error for missing key pair")
	}
	if _, err := LoadServerTLS(certFile, keyFile, garbage); err == nil {
		t.Error("expected error for unparsable CA")
	}
	if _, err := LoadClientTLS("", "", "missing-ca.pem"); err == nil {
		t.Error("expected error for missing CA")
	}
}
