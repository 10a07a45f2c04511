// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package tls generates and loads the certificates the arena serves wss://
// with when no certificate from a public CA is available.
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
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names inside a certificate directory.
const (
	CACertFile     = "root-ca.crt"
	CAKeyFile      = "root-ca.key"
	ServerCertFile = "arena.crt"
	ServerKeyFile  = "arena.key"
)

// DefaultHosts are the names a generated server certificate covers when
// none are given.
var DefaultHosts = []string{"localhost", "127.0.0.1"}

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a root CA valid for ten years.
func GenerateCA() (*CA, error) {
	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"GachaFight"},
			CommonName:   "GachaFight Arena Local CA",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	cert, err := createCertificate(template, template, key, key)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "create CA certificate")
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a one-year server certificate signed by ca.
// Each host is added as an IP SAN when it parses as an IP, otherwise as a
// DNS SAN.
func GenerateServerCert(ca *CA, hosts []string) (*ServerCert, error) {
	if ca == nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Errorf("CA is required")
	}
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"GachaFight"},
			CommonName:   hosts[0],
		},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	cert, err := createCertificate(template, ca.Certificate, key, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").With("hosts", hosts).Wrapf(err, "create server certificate")
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

func newKeyAndSerial() (*ecdsa.PrivateKey, *big.Int, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "generate key")
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "generate serial")
	}
	return key, serial, nil
}

func createCertificate(template, parent *x509.Certificate, key, signer *ecdsa.PrivateKey) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// Save writes the CA and server certificate into dir with 0600 files.
// A nil server writes only the CA.
func Save(dir string, ca *CA, server *ServerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := saveCert(filepath.Join(dir, CACertFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(dir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}
	if server == nil {
		return nil
	}
	if err := saveCert(filepath.Join(dir, ServerCertFile), server.Certificate); err != nil {
		return err
	}
	return saveKey(filepath.Join(dir, ServerKeyFile), server.PrivateKey)
}

// LoadCA reads an existing CA from dir.
func LoadCA(dir string) (*CA, error) {
	cert, err := readCert(filepath.Join(dir, CACertFile))
	if err != nil {
		return nil, err
	}
	keyPath := filepath.Clean(filepath.Join(dir, CAKeyFile))
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Wrap(err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Errorf("no PEM data")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerConfig builds a server TLS config from the certificate pair
// in dir.
func LoadServerConfig(dir string) (*cryptotls.Config, error) {
	certPath := filepath.Join(dir, ServerCertFile)
	pair, err := cryptotls.LoadX509KeyPair(certPath, filepath.Join(dir, ServerKeyFile))
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", certPath).Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

// CertPool returns a pool holding the CA in dir, for clients that trust a
// generated certificate.
func CertPool(dir string) (*x509.CertPool, error) {
	cert, err := readCert(filepath.Join(dir, CACertFile))
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}

func readCert(path string) (*x509.Certificate, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Errorf("no PEM data")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return cert, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writePEM(path string, block *pem.Block) error {
	path = filepath.Clean(path)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
