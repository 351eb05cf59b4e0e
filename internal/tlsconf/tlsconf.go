// Package tlsconf builds TLS configurations from keystore and truststore
// files. PEM and PKCS#12 encodings are both accepted.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

var errNoCertificates = errors.New("tlsconf: no certificates found")

// ServerConfig loads a keystore holding the server certificate chain and its
// private key.
func ServerConfig(keystorePath, password string) (*tls.Config, error) {
	blocks, err := loadPEM(keystorePath, password)
	if err != nil {
		return nil, err
	}

	var certPEM, keyPEM []byte
	for _, b := range blocks {
		switch {
		case b.Type == "CERTIFICATE":
			certPEM = append(certPEM, pem.EncodeToMemory(b)...)
		case strings.HasSuffix(b.Type, "PRIVATE KEY"):
			keyPEM = append(keyPEM, pem.EncodeToMemory(b)...)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: keystore %s: %w", keystorePath, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientConfig loads a truststore of CA certificates used to verify the
// server. serverName is checked against the server certificate.
func ClientConfig(truststorePath, password, serverName string) (*tls.Config, error) {
	blocks, err := loadPEM(truststorePath, password)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	added := 0
	for _, b := range blocks {
		if b.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(b.Bytes)
		if err != nil {
			return nil, fmt.Errorf("tlsconf: truststore %s: %w", truststorePath, err)
		}
		pool.AddCert(cert)
		added++
	}
	if added == 0 {
		return nil, fmt.Errorf("%w in %s", errNoCertificates, truststorePath)
	}

	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// loadPEM reads path as PEM, or as PKCS#12 when the extension says so.
func loadPEM(path, password string) ([]*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		blocks, err := pkcs12.ToPEM(data, password)
		if err != nil {
			return nil, fmt.Errorf("tlsconf: decode %s: %w", path, err)
		}
		return blocks, nil
	}

	var blocks []*pem.Block
	for {
		var b *pem.Block
		b, data = pem.Decode(data)
		if b == nil {
			break
		}
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoCertificates, path)
	}
	return blocks, nil
}
