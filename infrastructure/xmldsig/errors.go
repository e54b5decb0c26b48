package xmldsig

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature agrupa as falhas criptográficas da verificação.
var ErrInvalidSignature = errors.New("invalid signature")

var (
	ErrDigestMismatch     = fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	ErrSignatureMismatch  = fmt.Errorf("%w: signature value mismatch", ErrInvalidSignature)
	ErrSignatureNotFound  = fmt.Errorf("%w: signature element not found", ErrInvalidSignature)
	ErrMalformedSignature = fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
)

var (
	ErrUnsupportedAlgorithm     = errors.New("unsupported algorithm")
	ErrReferenceNotFound        = errors.New("referenced element not found")
	ErrMissingKey               = errors.New("signing identity not configured")
	ErrCertificateNotRSA        = errors.New("certificate does not contain an RSA public key")
	ErrLegacyAlgorithmForbidden = errors.New("SHA-1 signing requires the legacy flag")
)

// ErrCertificateValidity é independente da validade criptográfica: uma
// assinatura íntegra pode ter sido feita com certificado fora do prazo.
var ErrCertificateValidity = errors.New("certificate outside validity period")

var (
	ErrCertificateExpired     = fmt.Errorf("%w: expired", ErrCertificateValidity)
	ErrCertificateNotYetValid = fmt.Errorf("%w: not yet valid", ErrCertificateValidity)
)
