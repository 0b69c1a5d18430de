package cert

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssuesLeafSignedByCA(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewManager(dir, "")
	require.NoError(t, err)

	raw, err := os.ReadFile(cm.CAPath())
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	ca, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(ca)

	tests := []struct {
		host   string
		verify string
	}{
		{"pentrack.test", "pentrack.test"},
		{"127.0.0.1", "127.0.0.1"},
		{"", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.verify, func(t *testing.T) {
			leaf, err := cm.GetCertificate(tt.host)
			require.NoError(t, err)
			parsed, err := x509.ParseCertificate(leaf.Certificate[0])
			require.NoError(t, err)

			_, err = parsed.Verify(x509.VerifyOptions{
				DNSName:   tt.verify,
				Roots:     roots,
				KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			})
			assert.NoError(t, err)
		})
	}
}

func TestManager_CachesAndReusesCA(t *testing.T) {
	dir := t.TempDir()
	first, err := NewManager(dir, "localhost")
	require.NoError(t, err)

	a, err := first.GetCertificate("api.pentrack.test")
	require.NoError(t, err)
	b, err := first.GetCertificate("api.pentrack.test")
	require.NoError(t, err)
	assert.Same(t, a, b)

	second, err := NewManager(dir, "localhost")
	require.NoError(t, err)
	assert.Equal(t, first.ca.Raw, second.ca.Raw, "CA is loaded from disk on restart")
}
