package xmldsig

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/xmltree"
)

// TrustStore resolve certificados por emissor/serial e confere cadeias.
type TrustStore interface {
	Lookup(issuer, serial string) (*x509.Certificate, bool)
	VerifyChain(cert *x509.Certificate, at time.Time) error
}

// VerifierOptions ajusta o verificador.
type VerifierOptions struct {
	// Trust é opcional; sem ele a cadeia não é conferida.
	Trust TrustStore
	// ExpiryWarning é a antecedência do aviso de vencimento. Zero usa 30 dias.
	ExpiryWarning time.Duration
	// IgnoreWhitespace remove nós só de espaço do conteúdo referenciado antes
	// do digest, para documentos reindentados depois da assinatura.
	IgnoreWhitespace bool
	Now              func() time.Time
}

// Verifier confere assinaturas XMLDSig envelopadas.
type Verifier struct {
	provider ports.SigningProvider
	opts     VerifierOptions
	log      *slog.Logger
}

var _ ports.Verifier = (*Verifier)(nil)

// NewVerifier cria um verificador. provider nil usa RSAProvider.
func NewVerifier(provider ports.SigningProvider, opts VerifierOptions, log *slog.Logger) *Verifier {
	if provider == nil {
		provider = RSAProvider{}
	}
	if opts.ExpiryWarning == 0 {
		opts.ExpiryWarning = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{provider: provider, opts: opts, log: log}
}

// envelope é a assinatura já extraída do documento.
type envelope struct {
	root           *etree.Element
	signedInfo     *etree.Element
	referenceID    string
	digestValue    string
	signatureValue []byte
	cert           *x509.Certificate
	algorithms     Algorithms
}

// Verify confere digest e assinatura. Falhas são da classe criptográfica e
// distinguem ErrDigestMismatch de ErrSignatureMismatch. A validade temporal
// do certificado não é conferida aqui; veja CheckCertificate.
func (v *Verifier) Verify(xmlData []byte) error {
	const op = "verify"
	env, err := v.open(xmlData)
	if err != nil {
		return err
	}

	// Realiza transform de enveloped signature e de canonicalização
	target := xmltree.FindByID(env.root, env.referenceID)
	if target == nil {
		return errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("%w: %w #%s", ErrMalformedSignature, ErrReferenceNotFound, env.referenceID))
	}
	refCopy := xmltree.Detach(target)
	canonURI := C14N10
	for _, t := range env.algorithms.Transforms {
		if t == EnvelopedURI {
			xmltree.RemoveSignatureElements(refCopy)
			continue
		}
		canonURI = t
	}
	if v.opts.IgnoreWhitespace {
		xmltree.RemoveWhitespaceNodes(refCopy)
	}
	canon, err := canonicalizer(canonURI)
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, err)
	}
	refCanon, err := canon.Canonicalize(refCopy)
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("failed to canonicalize reference: %w", err))
	}
	digestHashFn, err := digestHash(env.algorithms.Digest)
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, err)
	}
	h := digestHashFn.New()
	h.Write(refCanon)
	// compara digest gerado com o do elemento Reference
	if base64.StdEncoding.EncodeToString(h.Sum(nil)) != env.digestValue {
		v.log.Warn("signature digest mismatch", "reference", env.referenceID)
		return errs.Wrap(errs.ErrCrypto, op, ErrDigestMismatch)
	}

	// Realiza o transform de canonicalização de SignedInfo
	siCanonicalizer, err := canonicalizer(env.algorithms.Canonicalization)
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, err)
	}
	siCanon, err := siCanonicalizer.Canonicalize(xmltree.Detach(env.signedInfo))
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("failed to canonicalize SignedInfo: %w", err))
	}
	sigHash, err := signatureHash(env.algorithms.Signature)
	if err != nil {
		return errs.Wrap(errs.ErrCrypto, op, err)
	}
	// Verifica a assinatura usando a chave pública do certificado
	if err := v.provider.VerifyBytes(env.cert.PublicKey, siCanon, env.signatureValue, sigHash); err != nil {
		v.log.Warn("signature value mismatch", "reference", env.referenceID, "error", err)
		if errors.Is(err, ErrCertificateNotRSA) {
			return errs.Wrap(errs.ErrCrypto, op, err)
		}
		return errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("%w: %v", ErrSignatureMismatch, err))
	}
	return nil
}

// CheckCertificate confere a validade temporal do certificado embutido.
func (v *Verifier) CheckCertificate(xmlData []byte) error {
	env, err := v.open(xmlData)
	if err != nil {
		return err
	}
	return checkValidity(credential.ExtractInfo(env.cert), v.opts.Now())
}

func checkValidity(info credential.Info, now time.Time) error {
	switch info.StatusAt(now) {
	case credential.StatusExpired:
		return errs.Wrap(errs.ErrCrypto, "certificate", fmt.Errorf("%w on %s", ErrCertificateExpired, info.NotAfter.Format(time.DateOnly)))
	case credential.StatusNotYetValid:
		return errs.Wrap(errs.ErrCrypto, "certificate", fmt.Errorf("%w until %s", ErrCertificateNotYetValid, info.NotBefore.Format(time.DateOnly)))
	}
	return nil
}

// CertificateInfo extrai os metadados do certificado da assinatura.
func (v *Verifier) CertificateInfo(xmlData []byte) (*credential.Info, error) {
	env, err := v.open(xmlData)
	if err != nil {
		return nil, err
	}
	info := credential.ExtractInfo(env.cert)
	return &info, nil
}

// Algorithms devolve os algoritmos declarados na assinatura.
func (v *Verifier) Algorithms(xmlData []byte) (Algorithms, error) {
	env, err := v.open(xmlData)
	if err != nil {
		return Algorithms{}, err
	}
	return env.algorithms, nil
}

// open lê o documento e extrai SignedInfo, SignatureValue e o certificado.
func (v *Verifier) open(xmlData []byte) (*envelope, error) {
	const op = "verify"
	doc, err := xmltree.Parse(xmlData)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInput, op, err)
	}
	root := doc.Root()

	// Encontra elemento Signature
	var sigEl *etree.Element
	for _, el := range root.ChildElements() {
		if xmltree.IsSignature(el) {
			sigEl = el
			break
		}
	}
	if sigEl == nil {
		return nil, errs.Wrap(errs.ErrCrypto, op, ErrSignatureNotFound)
	}

	malformed := func(format string, args ...any) error {
		return errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("%w: "+format, append([]any{ErrMalformedSignature}, args...)...))
	}

	signedInfo := xmltree.Child(sigEl, "SignedInfo")
	reference := xmltree.Child(signedInfo, "Reference")
	keyInfo := xmltree.Child(sigEl, "KeyInfo")
	sigText := compact(xmltree.Text(sigEl, "SignatureValue"))
	if signedInfo == nil || reference == nil || keyInfo == nil || sigText == "" {
		return nil, malformed("incomplete signature structure")
	}

	env := &envelope{
		root:        root,
		signedInfo:  signedInfo,
		digestValue: compact(xmltree.Text(reference, "DigestValue")),
		algorithms: Algorithms{
			Canonicalization: algorithmOf(xmltree.Child(signedInfo, "CanonicalizationMethod")),
			Signature:        algorithmOf(xmltree.Child(signedInfo, "SignatureMethod")),
			Digest:           algorithmOf(xmltree.Child(reference, "DigestMethod")),
		},
	}
	if t := xmltree.Child(reference, "Transforms"); t != nil {
		for _, tr := range t.ChildElements() {
			env.algorithms.Transforms = append(env.algorithms.Transforms, algorithmOf(tr))
		}
	}

	uri := reference.SelectAttrValue("URI", "")
	if !strings.HasPrefix(uri, "#") || len(uri) < 2 {
		return nil, malformed("reference URI %q is not a same-document Id", uri)
	}
	env.referenceID = uri[1:]
	if env.digestValue == "" {
		return nil, malformed("missing DigestValue")
	}

	if env.signatureValue, err = base64.StdEncoding.DecodeString(sigText); err != nil {
		return nil, malformed("signature value is not valid base64: %v", err)
	}
	if env.cert, err = v.certificate(keyInfo); err != nil {
		return nil, malformed("%v", err)
	}
	return env, nil
}

// certificate lê o X509Certificate do KeyInfo. Na falta dele, busca no
// repositório confiável pelo X509IssuerSerial.
func (v *Verifier) certificate(keyInfo *etree.Element) (*x509.Certificate, error) {
	x509Data := xmltree.Child(keyInfo, "X509Data")
	if x509Data == nil {
		return nil, errors.New("X509Data not found in KeyInfo")
	}
	if b64 := compact(xmltree.Text(x509Data, "X509Certificate")); b64 != "" {
		der, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("X509Certificate is not valid base64: %w", err)
		}
		return v.provider.ParseCertificate(der)
	}

	issuer := strings.TrimSpace(xmltree.Text(x509Data, "X509IssuerSerial", "X509IssuerName"))
	serial := strings.TrimSpace(xmltree.Text(x509Data, "X509IssuerSerial", "X509SerialNumber"))
	if issuer == "" || serial == "" {
		return nil, errors.New("KeyInfo carries neither X509Certificate nor X509IssuerSerial")
	}
	if v.opts.Trust == nil {
		return nil, fmt.Errorf("certificate for issuer %s, serial %s requires a trust store", issuer, serial)
	}
	cert, ok := v.opts.Trust.Lookup(issuer, serial)
	if !ok {
		return nil, fmt.Errorf("certificate not found for issuer: %s, serial: %s", issuer, serial)
	}
	return cert, nil
}

func algorithmOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("Algorithm", "")
}

// compact remove quebras de linha e espaços de valores Base64.
func compact(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), "")
}
