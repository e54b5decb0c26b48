package certstore

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lb-conn/nfse-dps/infrastructure/xmldps"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldsig"
	"github.com/lb-conn/nfse-dps/testutil"
)

func TestTrustPool(t *testing.T) {
	dir := t.TempDir()
	id := testutil.NewIdentity(t)
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Certificate.Raw})
	if err := os.WriteFile(filepath.Join(dir, "raiz.pem"), block, 0o600); err != nil {
		t.Fatal(err)
	}

	pool := NewTrustPool(nil)
	if err := pool.VerifyChain(id.Certificate, time.Now()); err == nil {
		t.Error("empty pool must not trust anything")
	}
	if err := pool.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected 1 certificate, got %d", pool.Len())
	}

	cert, ok := pool.Lookup(id.Certificate.Issuer.String(), id.Certificate.SerialNumber.String())
	if !ok || !cert.Equal(id.Certificate) {
		t.Error("Lookup by issuer and serial failed")
	}
	if err := pool.VerifyChain(id.Certificate, time.Now()); err != nil {
		t.Errorf("VerifyChain: %v", err)
	}
	if err := pool.VerifyChain(id.Certificate, time.Now().AddDate(2, 0, 0)); err == nil {
		t.Error("chain must not verify after expiry")
	}

	stranger := testutil.NewIdentityWith(t, testutil.CertOptions{
		CommonName: "DESCONHECIDO",
		NotBefore:  time.Now().Add(-time.Hour),
		NotAfter:   time.Now().Add(time.Hour),
	})
	if err := pool.VerifyChain(stranger.Certificate, time.Now()); err == nil {
		t.Error("unknown root must not verify")
	}
}

func TestTrustPool_LoadDirErrors(t *testing.T) {
	pool := NewTrustPool(nil)
	if err := pool.LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("missing directory must fail")
	}
	if err := pool.LoadDir(t.TempDir()); err == nil {
		t.Error("directory without certificates must fail")
	}
}

func TestTrustPool_ServesVerifier(t *testing.T) {
	id := testutil.NewIdentity(t)
	pool := NewTrustPool(nil)
	pool.AddCertificate(id.Certificate)

	data, err := xmldps.NewSerializer("", "").Serialize(testutil.SampleDocument())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	signer, err := xmldsig.NewSigner(id, nil, xmldsig.Options{}, nil)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	signed, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := xmldsig.NewVerifier(nil, xmldsig.VerifierOptions{Trust: pool}, nil)
	r := v.Report(signed)
	if !r.Valid {
		t.Fatalf("expected valid report, got %v", r.Errors)
	}
	for _, w := range r.Warnings {
		if strings.Contains(w, "chain") {
			t.Errorf("trusted chain must not warn: %s", w)
		}
	}
}
