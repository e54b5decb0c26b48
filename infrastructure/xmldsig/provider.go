package xmldsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/lb-conn/nfse-dps/application/ports"
)

// RSAProvider implementa as primitivas RSA PKCS#1 v1.5. A chave pode ser
// qualquer crypto.Signer RSA, em memória ou num token PKCS#11.
type RSAProvider struct{}

var _ ports.SigningProvider = RSAProvider{}

// SignBytes calcula o hash de data e assina com a chave informada.
func (RSAProvider) SignBytes(key crypto.Signer, data []byte, hash crypto.Hash) ([]byte, error) {
	if key == nil {
		return nil, ErrMissingKey
	}
	if _, ok := key.Public().(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("only RSA keys are supported, got %T", key.Public())
	}
	h := hash.New()
	h.Write(data)
	sig, err := key.Sign(rand.Reader, h.Sum(nil), hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// VerifyBytes confere uma assinatura PKCS#1 v1.5 sobre data.
func (RSAProvider) VerifyBytes(pub crypto.PublicKey, data, signature []byte, hash crypto.Hash) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return ErrCertificateNotRSA
	}
	h := hash.New()
	h.Write(data)
	return rsa.VerifyPKCS1v15(rsaPub, hash, h.Sum(nil), signature)
}

// ParseCertificate lê um certificado DER.
func (RSAProvider) ParseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
