package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/naumanni/naumanni-server/pkg/config"
)

// writeCert writes a self-signed certificate for 127.0.0.1 and returns the
// file paths.
func writeCert(t *testing.T, dir string, serial int64, notBefore, notAfter time.Time) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "naumanni.test"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
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
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func servingSerial(t *testing.T, r *certReloader) int64 {
	t.Helper()
	cert, err := r.GetCertificate(nil)
	if err != nil || cert == nil || cert.Leaf == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	return cert.Leaf.SerialNumber.Int64()
}

func TestCertReloader(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	certFile, keyFile := writeCert(t, dir, 1, now.Add(-time.Hour), now.Add(90*24*time.Hour))

	r, err := newCertReloader(certFile, keyFile)
	if err != nil {
		t.Fatalf("newCertReloader() error = %v", err)
	}
	if got := servingSerial(t, r); got != 1 {
		t.Fatalf("serial = %d, want 1", got)
	}
	if r.changed() {
		t.Error("changed() = true right after loading")
	}

	// Renewal replaces both files.
	writeCert(t, dir, 2, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	later := now.Add(time.Hour)
	for _, f := range []string{certFile, keyFile} {
		if err := os.Chtimes(f, later, later); err != nil {
			t.Fatal(err)
		}
	}
	if !r.changed() {
		t.Fatal("changed() = false after renewal")
	}
	if err := r.reload(); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if got := servingSerial(t, r); got != 2 {
		t.Errorf("serial = %d, want 2", got)
	}

	// A broken renewal keeps the previous certificate.
	if err := os.WriteFile(certFile, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.reload(); err == nil {
		t.Error("reload() of a broken file succeeded")
	}
	if got := servingSerial(t, r); got != 2 {
		t.Errorf("serial after failed reload = %d, want 2", got)
	}
}

func TestCertReloader_RejectsInvalid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		notBefore time.Time
		notAfter  time.Time
		wantErr   string
	}{
		{"expired", now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), "expired"},
		{"not yet valid", now.Add(24 * time.Hour), now.Add(48 * time.Hour), "not valid before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certFile, keyFile := writeCert(t, t.TempDir(), 1, tt.notBefore, tt.notAfter)
			_, err := newCertReloader(certFile, keyFile)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("newCertReloader() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := newCertReloader("missing.pem", "missing.key"); err == nil {
		t.Error("newCertReloader(missing) succeeded")
	}
}

func TestServer_ServesTLS(t *testing.T) {
	now := time.Now()
	certFile, keyFile := writeCert(t, t.TempDir(), 7, now.Add(-time.Hour), now.Add(24*time.Hour))

	cfg := config.Default()
	cfg.Server.TLS = config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}
	srv, _ := newTestServer(t, cfg)
	addr, done := serveInBackground(t, srv)
	addr = strings.Replace(addr, "http://", "https://", 1)

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 - self-signed test certificate
	}}
	resp, err := client.Get(addr + "/ping")
	if err != nil {
		t.Fatalf("GET /ping over TLS: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("GET /ping = %q", body)
	}
	if got := resp.TLS.PeerCertificates[0].SerialNumber.Int64(); got != 7 {
		t.Errorf("served serial = %d, want 7", got)
	}

	if err := srv.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}
