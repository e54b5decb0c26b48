package credential_test

import (
	"testing"
	"time"

	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/testutil"
)

func TestExtractInfo(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		opts     testutil.CertOptions
		wantCNPJ string
		wantCPF  string
	}{
		{
			name:     "e-CNPJ from otherName",
			opts:     testutil.CertOptions{CommonName: "EMPRESA X", CNPJ: "11222333000181"},
			wantCNPJ: "11222333000181",
		},
		{
			name:    "e-CPF from otherName person data",
			opts:    testutil.CertOptions{CommonName: "FULANO DE TAL", CPF: "52998224725"},
			wantCPF: "52998224725",
		},
		{
			name:     "CN suffix fallback",
			opts:     testutil.CertOptions{CommonName: "EMPRESA Y LTDA:12345678000195"},
			wantCNPJ: "12345678000195",
		},
		{
			name: "no federal id",
			opts: testutil.CertOptions{CommonName: "Test Signer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NotBefore = now.Add(-time.Hour)
			tt.opts.NotAfter = now.Add(48 * time.Hour)
			id := testutil.NewIdentityWith(t, tt.opts)

			info := credential.ExtractInfo(id.Certificate)
			if info.CNPJ != tt.wantCNPJ {
				t.Errorf("expected CNPJ %q, got %q", tt.wantCNPJ, info.CNPJ)
			}
			if info.CPF != tt.wantCPF {
				t.Errorf("expected CPF %q, got %q", tt.wantCPF, info.CPF)
			}
			if len(info.Fingerprint) != 64 {
				t.Errorf("expected hex sha256 fingerprint, got %q", info.Fingerprint)
			}
			if info.StatusAt(now) != credential.StatusValid {
				t.Errorf("expected valid status, got %s", info.StatusAt(now))
			}
			if d := info.DaysLeft(now); d != 1 && d != 2 {
				t.Errorf("expected about 2 days left, got %d", d)
			}
		})
	}
}

func TestInfo_StatusAt(t *testing.T) {
	nb := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	info := credential.Info{NotBefore: nb, NotAfter: nb.AddDate(1, 0, 0)}

	if s := info.StatusAt(nb.Add(-time.Second)); s != credential.StatusNotYetValid {
		t.Errorf("expected not yet valid, got %s", s)
	}
	if s := info.StatusAt(nb.AddDate(2, 0, 0)); s != credential.StatusExpired {
		t.Errorf("expected expired, got %s", s)
	}
}

func TestIdentity_Validate(t *testing.T) {
	id := testutil.NewIdentity(t)
	if err := id.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&credential.Identity{Certificate: id.Certificate}).Validate(); err == nil {
		t.Error("expected error for missing key")
	}
	if err := (&credential.Identity{Key: id.Key}).Validate(); err == nil {
		t.Error("expected error for missing certificate")
	}
}
