package rtc

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/report"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldps"
	"github.com/lb-conn/nfse-dps/testutil"
)

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidate_SampleIsClean(t *testing.T) {
	for name, doc := range map[string]*dps.Document{
		"individual": testutil.SampleDocument(),
		"company": func() *dps.Document {
			d := testutil.SampleDocument()
			d.Customer = testutil.CompanyCustomer()
			return d
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			r := New(nil).Validate(doc)
			if !r.Valid || len(r.Warnings) > 0 {
				t.Fatalf("expected clean report, got errors=%v warnings=%v", r.Errors, r.Warnings)
			}
			if r.Details == nil || r.Details.Coverage != 100 {
				t.Errorf("expected full coverage, got %+v", r.Details)
			}
			for _, section := range []string{"id", "header", "provider", "customer", "service", "values", "taxation"} {
				if _, ok := r.Section(section); !ok {
					t.Errorf("missing section %s", section)
				}
			}
		})
	}
}

func TestValidate_MonetaryDriftIsWarning(t *testing.T) {
	doc := testutil.SampleDocument()
	doc.Values.Gross = decimal.RequireFromString("1000.00")
	doc.Values.ISSAmount = decimal.RequireFromString("50.00")
	doc.Values.Net = decimal.RequireFromString("900.00")

	r := New(nil).Validate(doc)
	if !r.Valid {
		t.Fatalf("drift must not be an error: %v", r.Errors)
	}
	if !contains(r.Warnings, "values: net 900.00 differs") || !contains(r.Warnings, "950.00") {
		t.Errorf("expected net mismatch warning, got %v", r.Warnings)
	}

	// Diferença de um centavo é tolerada.
	doc.Values.Net = decimal.RequireFromString("949.99")
	if r := New(nil).Validate(doc); len(r.Warnings) != 0 {
		t.Errorf("one cent must be tolerated, got %v", r.Warnings)
	}
}

func TestValidate_CompanyAddressRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *dps.Address)
		want   string
	}{
		{"street", func(a *dps.Address) { a.Street = "" }, "street"},
		{"number", func(a *dps.Address) { a.Number = " " }, "number"},
		{"neighborhood", func(a *dps.Address) { a.District = "" }, "neighborhood"},
		{"municipality code", func(a *dps.Address) {
			loc := a.Location.(dps.NationalLocation)
			loc.MunicipalityCode = ""
			a.Location = loc
		}, "municipality code"},
		{"state", func(a *dps.Address) {
			loc := a.Location.(dps.NationalLocation)
			loc.State = ""
			a.Location = loc
		}, "state"},
		{"postal code", func(a *dps.Address) {
			loc := a.Location.(dps.NationalLocation)
			loc.PostalCode = "2004"
			a.Location = loc
		}, "postal code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testutil.SampleDocument()
			doc.Customer = testutil.CompanyCustomer()
			tt.mutate(doc.Customer.Address)

			r := New(nil).Validate(doc)
			if r.Valid {
				t.Fatal("expected structural error")
			}
			if !contains(r.Errors, "customer: address "+tt.want) {
				t.Errorf("expected customer %s error, got %v", tt.want, r.Errors)
			}
		})
	}
}

func TestValidate_CompanyWithoutAddress(t *testing.T) {
	doc := testutil.SampleDocument()
	doc.Customer = testutil.CompanyCustomer()
	doc.Customer.Address = nil

	r := New(nil).Validate(doc)
	if r.Valid || !contains(r.Errors, "address is required for a company customer") {
		t.Errorf("expected missing address error, got %v", r.Errors)
	}
}

func TestValidate_IndividualWithoutAddress(t *testing.T) {
	doc := testutil.SampleDocument()
	doc.Customer.Address = nil
	if r := New(nil).Validate(doc); !r.Valid {
		t.Errorf("individual without address must be valid, got %v", r.Errors)
	}
}

func TestValidate_Findings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *dps.Document)
		error   string
		warning string
	}{
		{
			name:   "invalid provider CNPJ",
			mutate: func(d *dps.Document) { d.Provider.TaxID = dps.CNPJ("11222333000182") },
			error:  "provider: CNPJ",
		},
		{
			name:   "invalid customer CPF",
			mutate: func(d *dps.Document) { d.Customer.Identity = dps.CPF("11111111111") },
			error:  "customer: CPF",
		},
		{
			name:   "missing customer identity",
			mutate: func(d *dps.Document) { d.Customer.Identity = nil },
			error:  "customer: CNPJ, CPF, NIF or cNaoNIF is required",
		},
		{
			name:   "empty description",
			mutate: func(d *dps.Document) { d.Service.Description = "" },
			error:  "xDescServ must have 1 to 2000",
		},
		{
			name:   "description too long",
			mutate: func(d *dps.Document) { d.Service.Description = strings.Repeat("á", 2001) },
			error:  "got 2001",
		},
		{
			name:   "markup in description",
			mutate: func(d *dps.Document) { d.Service.Description = "<p>x</p>" },
			error:  "markup",
		},
		{
			name:   "national tax code",
			mutate: func(d *dps.Document) { d.Service.NationalTaxCode = "0107" },
			error:  "cTribNac",
		},
		{
			name:   "environment",
			mutate: func(d *dps.Document) { d.Environment = 3 },
			error:  "tpAmb",
		},
		{
			name:   "non-positive gross",
			mutate: func(d *dps.Document) { d.Values.Gross = decimal.Zero },
			error:  "vServ must be positive",
		},
		{
			name: "export inside Brazil",
			mutate: func(d *dps.Document) {
				d.Taxation.ISSQN = dps.TaxationExport
				d.Taxation.ResultCountry = "BR"
			},
			error: "export taxation requires a non-BR country",
		},
		{
			name:    "ISS rate above 5",
			mutate:  func(d *dps.Document) { d.Values.ISSRate = decimal.RequireFromString("7.5") },
			warning: "ISS rate 7.50% outside",
		},
		{
			name:    "ISS rate below 2",
			mutate:  func(d *dps.Document) { d.Values.ISSRate = decimal.RequireFromString("1") },
			warning: "ISS rate 1.00% outside",
		},
		{
			name: "state does not match IBGE prefix",
			mutate: func(d *dps.Document) {
				d.Customer = testutil.CompanyCustomer()
				loc := d.Customer.Address.Location.(dps.NationalLocation)
				loc.State = "SP"
				d.Customer.Address.Location = loc
			},
			warning: "address state SP does not match municipality 3304557 (RJ)",
		},
		{
			name:    "abroad but taxed as domestic",
			mutate:  func(d *dps.Document) { d.Service.CountryCode = "US" },
			warning: "service provided abroad (US)",
		},
		{
			name:   "sequence mismatch with id",
			mutate: func(d *dps.Document) { d.Number = 43 },
			error:  "id: number 42 differs from nDPS 43",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testutil.SampleDocument()
			tt.mutate(doc)
			doc.Values.Base, doc.Values.ISSAmount, doc.Values.Net = doc.Values.Totals()

			r := New(nil).Validate(doc)
			if tt.error != "" && (r.Valid || !contains(r.Errors, tt.error)) {
				t.Errorf("expected error %q, got %v", tt.error, r.Errors)
			}
			if tt.warning != "" {
				if !r.Valid {
					t.Errorf("warning case must stay valid, got %v", r.Errors)
				}
				if !contains(r.Warnings, tt.warning) {
					t.Errorf("expected warning %q, got %v", tt.warning, r.Warnings)
				}
			}
		})
	}
}

func TestValidate_ExtraRule(t *testing.T) {
	onlyCards := func(d *dps.Document) report.Report {
		b := report.NewBuilder("custom")
		b.Check(d.Values.Gross.LessThan(decimal.NewFromInt(500)), "gross above store limit")
		return b.Report()
	}
	r := New(nil, onlyCards).Validate(testutil.SampleDocument())
	if r.Valid || !contains(r.Errors, "custom: gross above store limit") {
		t.Errorf("expected custom rule error, got %v", r.Errors)
	}
}

func TestValidateXML(t *testing.T) {
	doc := testutil.SampleDocument()
	doc.Customer = testutil.CompanyCustomer()
	data, err := xmldps.NewSerializer("", "").Serialize(doc)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	v := New(nil)
	if r := v.ValidateXML(data); !r.Valid || len(r.Warnings) > 0 {
		t.Fatalf("expected clean report, got %v / %v", r.Errors, r.Warnings)
	}

	broken := strings.Replace(string(data), "<xBairro>Centro</xBairro>", "", 1)
	if r := v.ValidateXML([]byte(broken)); !contains(r.Errors, "customer: address neighborhood") {
		t.Errorf("expected neighborhood error, got %v", r.Errors)
	}

	badID := strings.Replace(string(data), `Id="DPS3550308`, `Id="DPX3550308`, 1)
	if r := v.ValidateXML([]byte(badID)); !contains(r.Errors, "id: dps id prefix") {
		t.Errorf("expected id prefix error, got %v", r.Errors)
	}

	badNumber := strings.Replace(string(data), "<nDPS>42</nDPS>", "<nDPS>4x</nDPS>", 1)
	if r := v.ValidateXML([]byte(badNumber)); !contains(r.Errors, "xml: nDPS") {
		t.Errorf("expected unreadable nDPS error, got %v", r.Errors)
	}

	if r := v.ValidateXML([]byte("<DPS>")); r.Valid || !contains(r.Errors, "xml:") {
		t.Errorf("expected xml error, got %v", r.Errors)
	}
}
