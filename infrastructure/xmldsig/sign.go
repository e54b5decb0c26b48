package xmldsig

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/xmltree"
)

// Sign assina o documento e devolve uma nova cópia com <Signature> como
// último filho da raiz. A referência aponta para o elemento cujo Id tem o
// tamanho do identificador da DPS (45), com transforms enveloped e C14N.
// O XML de entrada não é alterado.
func (s *Signer) Sign(xmlData []byte) ([]byte, error) {
	const op = "sign"

	// Certificado fora do prazo é rejeitado pela Sefin; não assina.
	info := s.Certificate()
	switch info.StatusAt(s.now()) {
	case credential.StatusExpired:
		return nil, errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("%w on %s", ErrCertificateExpired, info.NotAfter.Format(time.DateOnly)))
	case credential.StatusNotYetValid:
		return nil, errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("%w until %s", ErrCertificateNotYetValid, info.NotBefore.Format(time.DateOnly)))
	}

	doc, err := xmltree.Parse(xmlData)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInput, op, err)
	}
	root := doc.Root()

	// Preparar o documento: espaços entre tags e assinaturas anteriores saem
	xmltree.Normalize(doc)
	xmltree.RemoveSignatureElements(root)

	target := xmltree.FindIDOfLength(root, dps.IDLength)
	if target == nil {
		return nil, errs.Wrap(errs.ErrInput, op, fmt.Errorf("%w: no element with a %d-character Id", ErrReferenceNotFound, dps.IDLength))
	}
	id := target.SelectAttrValue("Id", "")

	canon, err := canonicalizer(s.opts.Canonicalization)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, op, err)
	}

	// Realiza transform de enveloped signature e de canonicalização
	refCopy := xmltree.Detach(target)
	xmltree.RemoveSignatureElements(refCopy)
	refCanon, err := canon.Canonicalize(refCopy)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("failed to canonicalize %s: %w", xmltree.LocalName(target), err))
	}
	h := s.opts.Hash.New()
	h.Write(refCanon)
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))

	// Constrói <Signature> com SignedInfo e a referência ao infDPS
	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", Namespace)
	signedInfo := signature.CreateElement("SignedInfo")
	signedInfo.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", s.opts.Canonicalization)
	signedInfo.CreateElement("SignatureMethod").CreateAttr("Algorithm", signatureURI(s.opts.Hash))

	reference := signedInfo.CreateElement("Reference")
	reference.CreateAttr("URI", "#"+id)
	transforms := reference.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", EnvelopedURI)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", s.opts.Canonicalization)
	reference.CreateElement("DigestMethod").CreateAttr("Algorithm", digestURI(s.opts.Hash))
	reference.CreateElement("DigestValue").SetText(digest)

	// SignedInfo é canonicalizado no contexto de namespaces da <Signature>
	root.AddChild(signature)
	siCanon, err := canon.Canonicalize(xmltree.Detach(signedInfo))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("failed to canonicalize SignedInfo: %w", err))
	}
	sigBytes, err := s.provider.SignBytes(s.identity.Key, siCanon, s.opts.Hash)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCrypto, op, fmt.Errorf("failed to sign SignedInfo: %w", err))
	}
	signature.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sigBytes))

	// KeyInfo leva o certificado DER em Base64, numa linha só
	keyInfo := signature.CreateElement("KeyInfo")
	keyInfo.CreateElement("X509Data").CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(s.identity.Certificate.Raw))

	out, err := xmltree.Write(doc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSerialization, op, err)
	}
	s.log.Debug("document signed",
		"reference", id,
		"digest", digest,
		"signature_method", signatureURI(s.opts.Hash),
		"certificate", info.Fingerprint)
	return out, nil
}
