package xmldsig

import (
	"crypto"
	"fmt"

	dsig "github.com/russellhaering/goxmldsig"
)

// Namespace é o namespace XMLDSig declarado no elemento <Signature>.
const Namespace = "http://www.w3.org/2000/09/xmldsig#"

// Identificadores de algoritmo aceitos.
const (
	C14N10          = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	C14N10Exclusive = "http://www.w3.org/2001/10/xml-exc-c14n#"
	EnvelopedURI    = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"

	SignatureRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	SignatureRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
)

// Algorithms descreve os algoritmos declarados numa assinatura.
type Algorithms struct {
	Canonicalization string   `json:"canonicalization"`
	Signature        string   `json:"signature"`
	Digest           string   `json:"digest"`
	Transforms       []string `json:"transforms"`
}

// Legacy informa se a assinatura usa SHA-1.
func (a Algorithms) Legacy() bool {
	return a.Digest == DigestSHA1 || a.Signature == SignatureRSASHA1
}

// canonicalizer devolve o canonicalizador goxmldsig para o URI informado.
func canonicalizer(uri string) (dsig.Canonicalizer, error) {
	switch uri {
	case C14N10:
		return dsig.MakeC14N10RecCanonicalizer(), nil
	case C14N10Exclusive:
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(""), nil
	}
	return nil, fmt.Errorf("%w: canonicalization %q", ErrUnsupportedAlgorithm, uri)
}

func digestHash(uri string) (crypto.Hash, error) {
	switch uri {
	case DigestSHA256:
		return crypto.SHA256, nil
	case DigestSHA1:
		return crypto.SHA1, nil
	}
	return 0, fmt.Errorf("%w: digest %q", ErrUnsupportedAlgorithm, uri)
}

func signatureHash(uri string) (crypto.Hash, error) {
	switch uri {
	case SignatureRSASHA256:
		return crypto.SHA256, nil
	case SignatureRSASHA1:
		return crypto.SHA1, nil
	}
	return 0, fmt.Errorf("%w: signature %q", ErrUnsupportedAlgorithm, uri)
}

func digestURI(h crypto.Hash) string {
	if h == crypto.SHA1 {
		return DigestSHA1
	}
	return DigestSHA256
}

func signatureURI(h crypto.Hash) string {
	if h == crypto.SHA1 {
		return SignatureRSASHA1
	}
	return SignatureRSASHA256
}
