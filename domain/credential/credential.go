// Package credential describes the signing identity consumed by the signer
// and the certificate metadata reported by the verifier.
package credential

import (
	"crypto"
	"crypto/x509"
	"errors"
	"time"
)

// Identity is a certificate with the key able to sign for it. Key may live in
// memory (A1) or in a hardware token (A3); only crypto.Signer is required.
type Identity struct {
	Key         crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
}

// Validate checks the key and certificate belong together.
func (id *Identity) Validate() error {
	if id == nil || id.Key == nil {
		return errors.New("signing identity has no private key")
	}
	if id.Certificate == nil {
		return errors.New("signing identity has no certificate")
	}
	pub, ok := id.Key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(id.Certificate.PublicKey) {
		return errors.New("private key does not match certificate public key")
	}
	return nil
}

// Info is the metadata extracted from a certificate.
type Info struct {
	Subject     string    `json:"subject"`
	CommonName  string    `json:"common_name"`
	Issuer      string    `json:"issuer"`
	Serial      string    `json:"serial"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	Fingerprint string    `json:"fingerprint_sha256"`
	// CNPJ and CPF come from ICP-Brasil otherName entries or the CN suffix.
	CNPJ string `json:"cnpj,omitempty"`
	CPF  string `json:"cpf,omitempty"`
}

// Status classifies a validity window at a given instant.
type Status int

const (
	StatusValid Status = iota
	StatusNotYetValid
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusNotYetValid:
		return "not yet valid"
	case StatusExpired:
		return "expired"
	default:
		return "valid"
	}
}

// StatusAt returns the temporal status of the certificate at now.
func (i Info) StatusAt(now time.Time) Status {
	switch {
	case now.Before(i.NotBefore):
		return StatusNotYetValid
	case now.After(i.NotAfter):
		return StatusExpired
	default:
		return StatusValid
	}
}

// DaysLeft returns whole days until expiry; negative once expired.
func (i Info) DaysLeft(now time.Time) int {
	return int(i.NotAfter.Sub(now).Hours() / 24)
}

// FederalID returns the CNPJ when present, otherwise the CPF.
func (i Info) FederalID() string {
	if i.CNPJ != "" {
		return i.CNPJ
	}
	return i.CPF
}
