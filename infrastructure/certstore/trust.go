package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TrustPool representa um repositório de certificados confiáveis
type TrustPool struct {
	certificates  map[string]*x509.Certificate // chave: "issuer:serialNumber"
	roots         *x509.CertPool
	intermediates *x509.CertPool
	log           *slog.Logger
}

// NewTrustPool cria um repositório vazio
func NewTrustPool(log *slog.Logger) *TrustPool {
	if log == nil {
		log = slog.Default()
	}
	return &TrustPool{
		certificates:  make(map[string]*x509.Certificate),
		roots:         x509.NewCertPool(),
		intermediates: x509.NewCertPool(),
		log:           log,
	}
}

// AddCertificate adiciona um certificado ao repositório. Autoassinados viram
// raízes; os demais, intermediários.
func (tp *TrustPool) AddCertificate(cert *x509.Certificate) {
	tp.certificates[makeCertificateKey(cert.Issuer.String(), cert.SerialNumber.String())] = cert
	if cert.CheckSignatureFrom(cert) == nil {
		tp.roots.AddCert(cert)
	} else {
		tp.intermediates.AddCert(cert)
	}
}

// Len retorna o número de certificados carregados.
func (tp *TrustPool) Len() int { return len(tp.certificates) }

// Lookup busca pelo par emissor/serial de X509IssuerSerial.
func (tp *TrustPool) Lookup(issuer, serial string) (*x509.Certificate, bool) {
	cert, ok := tp.certificates[makeCertificateKey(issuer, serial)]
	return cert, ok
}

// VerifyChain confere a cadeia do certificado até uma raiz do repositório.
func (tp *TrustPool) VerifyChain(cert *x509.Certificate, at time.Time) error {
	if len(tp.certificates) == 0 {
		return errors.New("trust pool is empty")
	}
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         tp.roots,
		Intermediates: tp.intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("certificate chain: %w", err)
	}
	return nil
}

// LoadDir carrega todos os arquivos .pem e .crt do diretório
func (tp *TrustPool) LoadDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("certificates directory not found: %s", dir)
	}

	var files []string
	for _, pattern := range []string{"*.pem", "*.crt"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to list certificate files in %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no certificate files found in %s", dir)
	}

	for _, file := range files {
		if err := tp.loadCertificateFile(file); err != nil {
			return fmt.Errorf("failed to load certificate %s: %w", file, err)
		}
	}

	tp.log.Info("trusted certificates loaded", "dir", dir, "files", len(files), "certificates", tp.Len())
	return nil
}

// loadCertificateFile carrega um arquivo de certificado individual
func (tp *TrustPool) loadCertificateFile(filePath string) error {
	certPEM, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Suporta múltiplos certificados em um arquivo
	for len(certPEM) > 0 {
		var block *pem.Block
		block, certPEM = pem.Decode(certPEM)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}
		tp.AddCertificate(cert)
		tp.log.Debug("trusted certificate added",
			"subject", cert.Subject.CommonName, "serial", cert.SerialNumber.String())
	}
	return nil
}

func makeCertificateKey(issuer, serial string) string {
	return fmt.Sprintf("%s:%s", issuer, serial)
}
