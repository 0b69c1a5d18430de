package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	caCertFile = "ca.pem"
	caKeyFile  = "ca-key.pem"
)

// Manager issues serving certificates signed by a local CA. The CA is kept
// in dir and reused across restarts; leaf certificates are cached per host.
type Manager struct {
	ca    *x509.Certificate
	caKey *rsa.PrivateKey
	certs map[string]*tls.Certificate
	mu    sync.RWMutex
	dir   string
	// fallback is the host used when a client sends no SNI.
	fallback string
}

func NewManager(dir, fallbackHost string) (*Manager, error) {
	if fallbackHost == "" {
		fallbackHost = "localhost"
	}
	cm := &Manager{
		certs:    make(map[string]*tls.Certificate),
		dir:      dir,
		fallback: fallbackHost,
	}

	if err := cm.loadCA(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading CA from %s: %w", dir, err)
		}
		if err := cm.generateCA(); err != nil {
			return nil, fmt.Errorf("generating CA: %w", err)
		}
	}

	return cm, nil
}

func (cm *Manager) generateCA() error {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Pentrack Local CA"},
			CommonName:   "Pentrack Root CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	caBytes, err := x509.CreateCertificate(rand.Reader, template, template, &caKey.PublicKey, caKey)
	if err != nil {
		return err
	}
	ca, err := x509.ParseCertificate(caBytes)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.dir, 0o700); err != nil {
		return err
	}
	if err := writePEM(filepath.Join(cm.dir, caCertFile), "CERTIFICATE", caBytes, 0o644); err != nil {
		return err
	}
	if err := writePEM(filepath.Join(cm.dir, caKeyFile), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(caKey), 0o600); err != nil {
		return err
	}

	cm.ca = ca
	cm.caKey = caKey
	return nil
}

func (cm *Manager) loadCA() error {
	certPEM, err := os.ReadFile(filepath.Join(cm.dir, caCertFile))
	if err != nil {
		return err
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return errors.New("no PEM block in CA certificate")
	}
	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return err
	}

	keyPEM, err := os.ReadFile(filepath.Join(cm.dir, caKeyFile))
	if err != nil {
		return err
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return errors.New("no PEM block in CA key")
	}
	caKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return err
	}

	cm.ca = ca
	cm.caKey = caKey
	return nil
}

// GetCertificate returns the cached leaf for host, issuing one on first use.
func (cm *Manager) GetCertificate(host string) (*tls.Certificate, error) {
	if host == "" {
		host = cm.fallback
	}

	cm.mu.RLock()
	if cert, ok := cm.certs[host]; ok {
		cm.mu.RUnlock()
		return cert, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cert, ok := cm.certs[host]; ok {
		return cert, nil
	}

	certKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Pentrack"},
			CommonName:   host,
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, cm.ca, &certKey.PublicKey, cm.caKey)
	if err != nil {
		return nil, err
	}

	cert := &tls.Certificate{
		Certificate: [][]byte{certBytes, cm.ca.Raw},
		PrivateKey:  certKey,
	}
	cm.certs[host] = cert
	return cert, nil
}

// TLSConfig serves certificates chosen by SNI.
func (cm *Manager) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return cm.GetCertificate(hello.ServerName)
		},
	}
}

// CAPath is the PEM file clients should trust.
func (cm *Manager) CAPath() string {
	return filepath.Join(cm.dir, caCertFile)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
