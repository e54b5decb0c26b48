// Package certstore loads signing identities from PEM files, PKCS#12 (A1)
// containers or PKCS#11 (A3) tokens, and keeps the pool of trusted roots used
// to validate signer chains.
package certstore

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
)

// ErrIdentityNotFound means the store has no identity under the given id.
var ErrIdentityNotFound = fmt.Errorf("%w: signing identity not found", errs.ErrConfig)

// PEMStore reads <dir>/<id>.pem holding the certificate, optional chain and
// an unencrypted private key.
type PEMStore struct {
	dir string
	log *slog.Logger
}

func NewPEMStore(dir string, log *slog.Logger) *PEMStore {
	if log == nil {
		log = slog.Default()
	}
	return &PEMStore{dir: dir, log: log}
}

func (s *PEMStore) Identity(ctx context.Context, id string) (*credential.Identity, error) {
	data, err := readNamed(s.dir, id, ".pem", ".crt")
	if err != nil {
		return nil, err
	}
	identity, err := ParsePEM(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "load identity "+id, err)
	}
	s.log.Info("signing identity loaded", "source", "pem", "id", id,
		"subject", identity.Certificate.Subject.CommonName)
	return identity, nil
}

// ParsePEM decodes every CERTIFICATE block (the first is the signer) and
// one PRIVATE KEY, RSA PRIVATE KEY or EC PRIVATE KEY block.
func ParsePEM(data []byte) (*credential.Identity, error) {
	identity := &credential.Identity{}
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			if identity.Certificate == nil {
				identity.Certificate = cert
			} else {
				identity.Chain = append(identity.Chain, cert)
			}
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			key, err := parseKey(block)
			if err != nil {
				return nil, err
			}
			identity.Key = key
		}
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}

func parseKey(block *pem.Block) (crypto.Signer, error) {
	var (
		key any
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errors.New("private key cannot sign")
	}
	return signer, nil
}

// PKCS12Store reads <dir>/<id>.pfx (or .p12) protected by a single password.
type PKCS12Store struct {
	dir      string
	password string
	log      *slog.Logger
}

func NewPKCS12Store(dir, password string, log *slog.Logger) *PKCS12Store {
	if log == nil {
		log = slog.Default()
	}
	return &PKCS12Store{dir: dir, password: password, log: log}
}

func (s *PKCS12Store) Identity(ctx context.Context, id string) (*credential.Identity, error) {
	data, err := readNamed(s.dir, id, ".pfx", ".p12")
	if err != nil {
		return nil, err
	}
	identity, err := DecodePKCS12(data, s.password)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "load identity "+id, err)
	}
	s.log.Info("signing identity loaded", "source", "pkcs12", "id", id,
		"subject", identity.Certificate.Subject.CommonName)
	return identity, nil
}

// DecodePKCS12 extracts key, certificate and CA chain from a PFX container.
func DecodePKCS12(data []byte, password string) (*credential.Identity, error) {
	priv, cert, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PKCS#12: %w", err)
	}
	key, ok := priv.(crypto.Signer)
	if !ok {
		return nil, errors.New("PKCS#12 private key cannot sign")
	}
	identity := &credential.Identity{Key: key, Certificate: cert, Chain: chain}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return identity, nil
}

func readNamed(dir, id string, exts ...string) ([]byte, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: invalid id %q", ErrIdentityNotFound, id)
	}
	for _, ext := range exts {
		data, err := os.ReadFile(filepath.Join(dir, id+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrConfig, "read identity "+id, err)
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrIdentityNotFound, id, dir)
}

var (
	_ ports.CertificateStore = (*PEMStore)(nil)
	_ ports.CertificateStore = (*PKCS12Store)(nil)
)
