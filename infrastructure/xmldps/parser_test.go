package xmldps

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/testutil"
)

func TestParse_ReversesSerialize(t *testing.T) {
	orig := testutil.SampleDocument()
	orig.Customer = testutil.CompanyCustomer()
	orig.Values.DiscountUnconditioned = decimal.RequireFromString("100")
	orig.Values.Base, orig.Values.ISSAmount, orig.Values.Net = orig.Values.Totals()

	s := NewSerializer("", "")
	data, err := s.Serialize(orig)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	decoded, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded.Issues) > 0 {
		t.Fatalf("unexpected issues: %v", decoded.Issues)
	}
	if decoded.Signed {
		t.Error("document must not be reported as signed")
	}
	if decoded.RawID != orig.ID.String() || decoded.Document.ID != orig.ID {
		t.Errorf("id mismatch: %s vs %s", decoded.RawID, orig.ID)
	}

	doc := decoded.Document
	if !doc.IssuedAt.Equal(orig.IssuedAt) {
		t.Errorf("issued at: got %v", doc.IssuedAt)
	}
	if doc.Provider.TaxID.Digits() != testutil.ProviderCNPJ {
		t.Errorf("provider: got %v", doc.Provider.TaxID)
	}
	if !doc.Customer.IsCompany() {
		t.Errorf("expected company customer, got %T", doc.Customer.Identity)
	}
	loc, ok := doc.Customer.Address.Location.(dps.NationalLocation)
	if !ok || loc.State != "RJ" || loc.MunicipalityCode != testutil.RioDeJaneiroIBGE {
		t.Errorf("unexpected customer location: %+v", doc.Customer.Address.Location)
	}
	if !doc.Values.Net.Equal(orig.Values.Net) || !doc.Values.ISSAmount.Equal(orig.Values.ISSAmount) {
		t.Errorf("values: net %s iss %s", doc.Values.Net, doc.Values.ISSAmount)
	}

	again, err := s.Serialize(doc)
	if err != nil {
		t.Fatalf("reserialize: %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("parse+serialize is not stable:\n%s\n%s", data, again)
	}
}

func TestParse_CollectsIssues(t *testing.T) {
	data := []byte(`<DPS xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.00"><infDPS Id="DPS1"><tpAmb>x</tpAmb><nDPS>12</nDPS><valores><vServPrest><vServ>1,00</vServ></vServPrest></valores></infDPS></DPS>`)
	decoded, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded.Issues) != 2 {
		t.Errorf("expected 2 issues, got %v", decoded.Issues)
	}
	if decoded.RawID != "DPS1" || decoded.Document.Number != 12 {
		t.Errorf("unexpected decode: %+v", decoded)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"malformed", `<DPS><infDPS>`},
		{"no infDPS", `<DPS/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if !errors.Is(err, errs.ErrInput) {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}
