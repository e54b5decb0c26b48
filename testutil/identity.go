package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/lb-conn/nfse-dps/domain/credential"
)

var (
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
	// OIDs ICP-Brasil de otherName.
	OIDICPCNPJ = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}
	OIDICPCPF  = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns a process-wide 2048-bit RSA key; generating one per test is slow.
func Key(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("generate key: %v", keyErr)
	}
	return key
}

// CertOptions tunes the generated certificate.
type CertOptions struct {
	CommonName string
	CNPJ       string
	CPF        string
	NotBefore  time.Time
	NotAfter   time.Time
}

// NewIdentity returns an ICP-Brasil style e-CNPJ identity valid for a year.
func NewIdentity(t testing.TB) *credential.Identity {
	t.Helper()
	now := time.Now()
	return NewIdentityWith(t, CertOptions{
		CommonName: "LOJA EXEMPLO SERVICOS DIGITAIS LTDA:" + ProviderCNPJ,
		CNPJ:       ProviderCNPJ,
		NotBefore:  now.Add(-time.Hour),
		NotAfter:   now.AddDate(1, 0, 0),
	})
}

// NewIdentityWith builds a self-signed identity with the given options.
func NewIdentityWith(t testing.TB, opts CertOptions) *credential.Identity {
	t.Helper()
	k := Key(t)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: []string{"ICP-Brasil"},
			Country:      []string{"BR"},
		},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	if opts.CNPJ != "" || opts.CPF != "" {
		san, err := ICPBrasilSAN(opts.CNPJ, opts.CPF)
		if err != nil {
			t.Fatalf("build SAN: %v", err)
		}
		tmpl.ExtraExtensions = []pkix.Extension{{Id: oidSubjectAltName, Value: san}}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &k.PublicKey, k)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return &credential.Identity{Key: k, Certificate: cert}
}

// ICPBrasilSAN encodes a subjectAltName with ICP-Brasil otherName entries.
// The CPF entry follows the PF layout: birth date (8) + CPF (11) + NIS (11) + RG.
func ICPBrasilSAN(cnpj, cpf string) ([]byte, error) {
	var names []byte
	add := func(oid asn1.ObjectIdentifier, value string) error {
		inner, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagOctetString, Bytes: []byte(value)})
		if err != nil {
			return err
		}
		explicit, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner})
		if err != nil {
			return err
		}
		oidDER, err := asn1.Marshal(oid)
		if err != nil {
			return err
		}
		other, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: append(oidDER, explicit...)})
		if err != nil {
			return err
		}
		names = append(names, other...)
		return nil
	}
	if cnpj != "" {
		if err := add(OIDICPCNPJ, cnpj); err != nil {
			return nil, err
		}
	}
	if cpf != "" {
		if err := add(OIDICPCPF, "01011980"+cpf+"00000000000"); err != nil {
			return nil, err
		}
	}
	return asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, Bytes: names})
}

// PEM encodes the identity as a certificate block followed by a PKCS#8 key block.
func PEM(t testing.TB, id *credential.Identity) []byte {
	t.Helper()
	keyDER, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Certificate.Raw})
	return append(out, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})...)
}
