package xmldsig

import (
	"crypto"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lb-conn/nfse-dps/testutil"
)

func signWith(t *testing.T, opts testutil.CertOptions, at time.Time, sopts Options) []byte {
	t.Helper()
	s, err := NewSigner(testutil.NewIdentityWith(t, opts), nil, sopts, nil)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signed, err := s.WithClock(func() time.Time { return at }).Sign(unsignedDPS(t))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestVerify_ExpiredCertificateIsSeparateClass(t *testing.T) {
	now := time.Now()
	signed := signWith(t, testutil.CertOptions{
		CommonName: "LOJA:" + testutil.ProviderCNPJ,
		CNPJ:       testutil.ProviderCNPJ,
		NotBefore:  now.AddDate(-2, 0, 0),
		NotAfter:   now.AddDate(-1, 0, 0),
	}, now.AddDate(-1, -6, 0), Options{})

	v := NewVerifier(nil, VerifierOptions{}, nil)
	if err := v.Verify(signed); err != nil {
		t.Fatalf("cryptographic verification must pass, got %v", err)
	}
	err := v.CheckCertificate(signed)
	if !errors.Is(err, ErrCertificateExpired) {
		t.Fatalf("expected expired certificate, got %v", err)
	}
	if errors.Is(err, ErrInvalidSignature) {
		t.Error("expiry must not be reported as an invalid signature")
	}

	r := v.Report(signed)
	if r.Valid {
		t.Fatal("expected report with certificate error")
	}
	if sec, _ := r.Section("signature"); sec.Errors != 0 {
		t.Errorf("signature section must be clean, got %+v (%v)", sec, r.Errors)
	}
	if sec, _ := r.Section("certificate"); sec.Errors != 1 {
		t.Errorf("expected certificate error, got %+v", sec)
	}
}

func TestReport_Warnings(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		cert testutil.CertOptions
		opts Options
		want string
	}{
		{
			name: "expiring soon",
			cert: testutil.CertOptions{CommonName: "LOJA", CNPJ: testutil.ProviderCNPJ, NotBefore: now.AddDate(-1, 0, 0), NotAfter: now.AddDate(0, 0, 10)},
			want: "certificate: certificate expires in",
		},
		{
			name: "holder differs from provider",
			cert: testutil.CertOptions{CommonName: "OUTRA", CNPJ: testutil.CustomerCNPJ, NotBefore: now.Add(-time.Hour), NotAfter: now.AddDate(1, 0, 0)},
			want: "differs from DPS provider",
		},
		{
			name: "legacy sha1",
			cert: testutil.CertOptions{CommonName: "LOJA", CNPJ: testutil.ProviderCNPJ, NotBefore: now.Add(-time.Hour), NotAfter: now.AddDate(1, 0, 0)},
			opts: Options{Hash: crypto.SHA1, AllowSHA1: true},
			want: "signature: legacy SHA-1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed := signWith(t, tt.cert, now, tt.opts)
			r := NewVerifier(nil, VerifierOptions{}, nil).Report(signed)
			if !r.Valid {
				t.Fatalf("warnings must not invalidate the report: %v", r.Errors)
			}
			found := false
			for _, w := range r.Warnings {
				found = found || strings.Contains(w, tt.want)
			}
			if !found {
				t.Errorf("expected warning %q, got %v", tt.want, r.Warnings)
			}
		})
	}
}

func TestReport_UntrustedChain(t *testing.T) {
	signed := signWith(t, testutil.CertOptions{
		CommonName: "LOJA",
		CNPJ:       testutil.ProviderCNPJ,
		NotBefore:  time.Now().Add(-time.Hour),
		NotAfter:   time.Now().AddDate(1, 0, 0),
	}, time.Now(), Options{})

	v := NewVerifier(nil, VerifierOptions{Trust: fakeTrust{chainErr: errors.New("unknown authority")}}, nil)
	r := v.Report(signed)
	if !r.Valid || len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "unknown authority") {
		t.Errorf("expected a single chain warning, got %+v", r)
	}
}

func TestReport_TamperedDocument(t *testing.T) {
	signed := signWith(t, testutil.CertOptions{
		CommonName: "LOJA",
		CNPJ:       testutil.ProviderCNPJ,
		NotBefore:  time.Now().Add(-time.Hour),
		NotAfter:   time.Now().AddDate(1, 0, 0),
	}, time.Now(), Options{})
	tampered := strings.Replace(string(signed), "1000.00", "1.00", 1)

	r := NewVerifier(nil, VerifierOptions{}, nil).Report([]byte(tampered))
	if r.Valid || !strings.Contains(r.Errors[0], "digest mismatch") {
		t.Errorf("expected digest error, got %+v", r.Errors)
	}
}

func TestVerifier_CertificateInfoAndAlgorithms(t *testing.T) {
	s := newSigner(t, Options{Canonicalization: C14N10Exclusive})
	signed, err := s.Sign(unsignedDPS(t))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v := NewVerifier(nil, VerifierOptions{}, nil)

	info, err := v.CertificateInfo(signed)
	if err != nil {
		t.Fatalf("certificate info: %v", err)
	}
	if info.CNPJ != testutil.ProviderCNPJ || info.Fingerprint != s.Certificate().Fingerprint {
		t.Errorf("unexpected info: %+v", info)
	}

	alg, err := v.Algorithms(signed)
	if err != nil {
		t.Fatalf("algorithms: %v", err)
	}
	want := s.Algorithms()
	if alg.Canonicalization != want.Canonicalization || alg.Digest != want.Digest || alg.Signature != want.Signature {
		t.Errorf("expected %+v, got %+v", want, alg)
	}
	if len(alg.Transforms) != 2 || alg.Transforms[0] != EnvelopedURI || alg.Transforms[1] != C14N10Exclusive {
		t.Errorf("unexpected transforms %v", alg.Transforms)
	}
	if alg.Legacy() {
		t.Error("sha256 must not be legacy")
	}
}
