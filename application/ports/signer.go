package ports

import (
	"crypto"
	"crypto/x509"

	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// Signer produz uma nova cópia do XML com a assinatura envelopada.
type Signer interface {
	Sign(xmlData []byte) ([]byte, error)
}

// Verifier confere assinaturas de documentos recebidos ou armazenados.
type Verifier interface {
	Verify(xmlData []byte) error
	Report(xmlData []byte) report.Report
	CertificateInfo(xmlData []byte) (*credential.Info, error)
}

// SigningProvider isola as primitivas criptográficas do assinador e do verificador.
type SigningProvider interface {
	SignBytes(key crypto.Signer, data []byte, hash crypto.Hash) ([]byte, error)
	VerifyBytes(pub crypto.PublicKey, data, signature []byte, hash crypto.Hash) error
	ParseCertificate(der []byte) (*x509.Certificate, error)
}
