package tls

import (
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"login-service/internal/config"
)

func TestSelfSignedOutsideProduction(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(config.ServerConfig{EnableTLS: true, Domain: "login.local", AutoCertDir: dir}, false)

	cert, err := m.GetCertificate(nil)
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "login.local")
	assert.Contains(t, leaf.DNSNames, "localhost")

	again, err := m.GetCertificate(nil)
	require.NoError(t, err)
	assert.Same(t, cert, again)
}

func TestNoCertificateInProduction(t *testing.T) {
	m := NewManager(config.ServerConfig{EnableTLS: true, AutoCertDir: t.TempDir()}, true)
	_, err := m.GetCertificate(nil)
	assert.ErrorIs(t, err, ErrNoCertificate)
}

func TestConfiguredKeyPair(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDevCertGenerator(dir).GenerateCert([]string{"example.test"})
	require.NoError(t, err)

	g := NewDevCertGenerator(dir)
	certPath, keyPath := g.paths()
	m := NewManager(config.ServerConfig{EnableTLS: true, CertFile: certPath, KeyFile: keyPath}, true)

	cert, err := m.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"example.test"}, leaf.DNSNames)
}

func TestGenerateCertReusesValidCertificate(t *testing.T) {
	dir := t.TempDir()
	first, err := NewDevCertGenerator(dir).GenerateCert([]string{"localhost"})
	require.NoError(t, err)

	second, err := NewDevCertGenerator(dir).GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])

	expired := NewDevCertGenerator(dir)
	expired.now = func() time.Time { return time.Now().Add(2 * devCertValidity) }
	certPath, _ := expired.paths()
	assert.False(t, expired.isCertificateValid(certPath))
}

func TestRedirectToHTTPS(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://example.test:8888/login?x=1", nil)
	RedirectToHTTPS(8443).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://example.test:8443/login?x=1", rec.Header().Get("Location"))
}

func TestTLSConfig(t *testing.T) {
	m := NewManager(config.ServerConfig{}, false)
	cfg := m.TLSConfig()
	assert.NotNil(t, cfg.GetCertificate)
	assert.NotContains(t, cfg.NextProtos, "acme-tls/1")

	rec := httptest.NewRecorder()
	m.HTTPHandler(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/acme-challenge/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
