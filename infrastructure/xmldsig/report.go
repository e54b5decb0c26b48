package xmldsig

import (
	"errors"
	"time"

	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// Report reúne num relatório a verificação criptográfica, a conformidade dos
// algoritmos e a situação do certificado. Certificado vencido é erro na
// seção "certificate", separado da seção "signature".
func (v *Verifier) Report(xmlData []byte) report.Report {
	sig := report.NewBuilder("signature")
	cert := report.NewBuilder("certificate")

	env, err := v.open(xmlData)
	if err != nil {
		sig.Check(false, "%v", err)
		return report.Merge(sig.Report())
	}

	if err := v.Verify(xmlData); err != nil {
		switch {
		case errors.Is(err, ErrDigestMismatch):
			sig.Check(false, "digest mismatch: signed content was altered")
		case errors.Is(err, ErrSignatureMismatch):
			sig.Check(false, "signature value does not match SignedInfo")
		default:
			sig.Check(false, "%v", err)
		}
	} else {
		sig.Check(true, "")
	}

	alg := env.algorithms
	sig.Check(len(alg.Transforms) > 0 && alg.Transforms[0] == EnvelopedURI,
		"first transform must be enveloped-signature, got %v", alg.Transforms)
	if alg.Legacy() {
		sig.Warnf("legacy SHA-1 algorithms in use (%s, %s)", alg.Digest, alg.Signature)
	}
	if id, err := dps.ParseID(env.referenceID); err == nil {
		env.expectFederalID(cert, id)
	}

	info := credential.ExtractInfo(env.cert)
	now := v.opts.Now()
	switch info.StatusAt(now) {
	case credential.StatusExpired:
		cert.Check(false, "certificate expired on %s", info.NotAfter.Format(time.DateOnly))
	case credential.StatusNotYetValid:
		cert.Check(false, "certificate not valid before %s", info.NotBefore.Format(time.DateOnly))
	default:
		cert.Check(true, "")
		if left := info.NotAfter.Sub(now); left < v.opts.ExpiryWarning {
			cert.Warnf("certificate expires in %d days (%s)", info.DaysLeft(now), info.NotAfter.Format(time.DateOnly))
		}
	}

	if v.opts.Trust != nil {
		if err := v.opts.Trust.VerifyChain(env.cert, now); err != nil {
			cert.Warnf("certificate chain not trusted: %v", err)
		}
	}
	return report.Merge(sig.Report(), cert.Report())
}

// expectFederalID avisa quando o CNPJ/CPF do certificado não é o do
// prestador gravado no identificador da DPS.
func (env *envelope) expectFederalID(b *report.Builder, id dps.ID) {
	info := credential.ExtractInfo(env.cert)
	certID := info.FederalID()
	if certID == "" {
		b.Warnf("certificate carries no ICP-Brasil CNPJ/CPF")
		return
	}
	want := id.FederalID
	if id.InscriptionType == dps.InscriptionCPF {
		want = want[len(want)-11:]
	}
	if certID != want {
		b.Warnf("certificate holder %s differs from DPS provider %s", certID, want)
	}
}
