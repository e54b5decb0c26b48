// Package xmldsig assina e verifica DPS com XMLDSig envelopada: referência
// ao infDPS pelo Id, transforms enveloped + C14N e certificado no KeyInfo.
package xmldsig

import (
	"crypto"
	"fmt"
	"log/slog"
	"time"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
)

// Options define os algoritmos usados na assinatura.
type Options struct {
	// Canonicalization é o URI do C14N. Vazio usa C14N 1.0 inclusivo.
	Canonicalization string
	// Hash é usado no digest e na assinatura. Zero usa SHA-256.
	Hash crypto.Hash
	// AllowSHA1 precisa estar ligado para aceitar Hash == crypto.SHA1.
	AllowSHA1 bool
}

func (o Options) withDefaults() Options {
	if o.Canonicalization == "" {
		o.Canonicalization = C14N10
	}
	if o.Hash == 0 {
		o.Hash = crypto.SHA256
	}
	return o
}

// Signer mantém a identidade e os algoritmos usados para assinar.
type Signer struct {
	identity *credential.Identity
	provider ports.SigningProvider
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

var _ ports.Signer = (*Signer)(nil)

// NewSigner valida a identidade e os algoritmos escolhidos.
func NewSigner(identity *credential.Identity, provider ports.SigningProvider, opts Options, log *slog.Logger) (*Signer, error) {
	if identity == nil {
		return nil, errs.Wrap(errs.ErrConfig, "new signer", ErrMissingKey)
	}
	if err := identity.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "new signer", err)
	}
	opts = opts.withDefaults()
	if _, err := canonicalizer(opts.Canonicalization); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "new signer", err)
	}
	switch opts.Hash {
	case crypto.SHA256:
	case crypto.SHA1:
		if !opts.AllowSHA1 {
			return nil, errs.Wrap(errs.ErrConfig, "new signer", ErrLegacyAlgorithmForbidden)
		}
	default:
		return nil, errs.Wrap(errs.ErrConfig, "new signer", fmt.Errorf("%w: hash %s", ErrUnsupportedAlgorithm, opts.Hash))
	}
	if provider == nil {
		provider = RSAProvider{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Hash == crypto.SHA1 {
		log.Warn("signer configured with legacy SHA-1 algorithms")
	}
	return &Signer{identity: identity, provider: provider, opts: opts, log: log, now: time.Now}, nil
}

// WithClock troca o relógio usado na checagem de validade do certificado.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Certificate devolve as informações do certificado de assinatura.
func (s *Signer) Certificate() credential.Info {
	return credential.ExtractInfo(s.identity.Certificate)
}

// Algorithms devolve os algoritmos que o Signer declara na assinatura.
func (s *Signer) Algorithms() Algorithms {
	return Algorithms{
		Canonicalization: s.opts.Canonicalization,
		Signature:        signatureURI(s.opts.Hash),
		Digest:           digestURI(s.opts.Hash),
		Transforms:       []string{EnvelopedURI, s.opts.Canonicalization},
	}
}
