package rtc

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/report"
)

const (
	maxDescription = 2000
	maxName        = 300
	maxAppVersion  = 20
)

var (
	reCountry = regexp.MustCompile(`^[A-Z]{2}$`)
	reMarkup  = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	reEmail   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	minISSRate = decimal.NewFromInt(2)
	maxISSRate = decimal.NewFromInt(5)
)

// CheckIdentifier validates the five fixed-width subfields of the raw Id and
// cross-checks them against the document fields they repeat.
func CheckIdentifier(raw string, doc *dps.Document) report.Report {
	b := report.NewBuilder("id")
	id, err := dps.ParseID(raw)
	if !b.Check(err == nil, "%v", err) {
		return b.Report()
	}
	problems := id.Problems()
	b.Check(len(problems) == 0, "%s", joinErrors(problems))

	b.Check(id.Municipality == doc.EmitterMunicipality,
		"municipality %s differs from cLocEmi %q", id.Municipality, doc.EmitterMunicipality)
	b.Check(id.Series == doc.Series, "series %d differs from serie %d", id.Series, doc.Series)
	b.Check(id.Number == doc.Number, "number %d differs from nDPS %d", id.Number, doc.Number)
	if tax := doc.Provider.TaxID; tax != nil {
		b.Check(id.InscriptionType == tax.InscriptionType() && strings.TrimLeft(id.FederalID, "0") == strings.TrimLeft(tax.Digits(), "0"),
			"inscription %d/%s differs from provider %s", id.InscriptionType, id.FederalID, tax.Digits())
	}
	return b.Report()
}

// CheckHeader validates the infDPS header fields.
func CheckHeader(doc *dps.Document) report.Report {
	b := report.NewBuilder("header")
	b.Check(doc.Environment.Valid(), "tpAmb must be 1 or 2, got %d", doc.Environment)
	b.Check(!doc.IssuedAt.IsZero(), "dhEmi is required")
	b.Check(doc.AppVersion != "" && utf8.RuneCountInString(doc.AppVersion) <= maxAppVersion,
		"verAplic must have 1 to %d characters, got %q", maxAppVersion, doc.AppVersion)
	b.Check(doc.Series >= 0 && doc.Series <= dps.MaxSeries, "serie must fit 5 digits, got %d", doc.Series)
	b.Check(doc.Number >= 1 && doc.Number <= dps.MaxNumber, "nDPS must fit 15 digits and be positive, got %d", doc.Number)
	if b.Check(!doc.CompetenceDate.IsZero(), "dCompet is required") && !doc.IssuedAt.IsZero() {
		b.Check(!dateOnly(doc.CompetenceDate).After(dateOnly(doc.IssuedAt)),
			"dCompet %s is after dhEmi %s", doc.CompetenceDate.Format("2006-01-02"), doc.IssuedAt.Format("2006-01-02"))
	}
	b.Check(doc.EmitterType == dps.EmitterProvider, "tpEmit must be 1 (provider), got %d", doc.EmitterType)
	_, ok := dps.StateOf(doc.EmitterMunicipality)
	b.Check(ok, "cLocEmi must be a 7-digit IBGE code, got %q", doc.EmitterMunicipality)
	return b.Report()
}

// CheckProvider validates the prest group.
func CheckProvider(doc *dps.Document) report.Report {
	b := report.NewBuilder("provider")
	p := doc.Provider
	if b.Check(p.TaxID != nil, "CNPJ or CPF is required") {
		checkFederalID(b, p.TaxID)
	}
	checkName(b, p.Name)
	b.Check(len(p.MunicipalRegistration) <= 15, "IM must have at most 15 characters, got %q", p.MunicipalRegistration)
	if p.Address != nil {
		checkAddress(b, p.Address)
	}
	checkContact(b, p.Phone, p.Email)

	r := p.Regime
	b.Check(r.SimplesNacional >= dps.SimplesNotOpted && r.SimplesNacional <= dps.SimplesMEEPP,
		"opSimpNac must be 1, 2 or 3, got %d", r.SimplesNacional)
	if r.SimplesNacional == dps.SimplesMEEPP {
		b.Check(r.SNRegime >= 1 && r.SNRegime <= 3, "regApTribSN must be 1, 2 or 3 for ME/EPP, got %d", r.SNRegime)
	}
	b.Check(r.SpecialRegime >= 0 && r.SpecialRegime <= 6, "regEspTrib must be between 0 and 6, got %d", r.SpecialRegime)
	return b.Report()
}

// CheckCustomer validates the toma group. A company customer must carry a
// complete address.
func CheckCustomer(doc *dps.Document) report.Report {
	b := report.NewBuilder("customer")
	c := doc.Customer
	if c == nil {
		return b.Report()
	}
	switch id := c.Identity.(type) {
	case dps.CNPJ:
		checkFederalID(b, id)
	case dps.CPF:
		checkFederalID(b, id)
	case dps.ForeignNIF:
		b.Check(id != "" && len(id) <= 40, "NIF must have 1 to 40 characters, got %q", string(id))
	case dps.NoNIF:
		b.Check(id >= dps.NoNIFNotInformed && id <= dps.NoNIFNotRequired, "cNaoNIF must be 0, 1 or 2, got %d", int(id))
	default:
		b.Check(false, "CNPJ, CPF, NIF or cNaoNIF is required")
	}
	checkName(b, c.Name)

	if c.IsCompany() {
		if !b.Check(c.Address != nil, "address is required for a company customer") {
			return b.Report()
		}
	}
	if c.Address != nil {
		checkAddress(b, c.Address)
	}
	checkContact(b, c.Phone, c.Email)
	return b.Report()
}

// CheckService validates the serv group.
func CheckService(doc *dps.Document) report.Report {
	b := report.NewBuilder("service")
	s := doc.Service
	if s.Abroad() {
		b.Check(reCountry.MatchString(s.CountryCode), "cPaisPrestacao must be an ISO alpha-2 code, got %q", s.CountryCode)
	} else {
		_, ok := dps.StateOf(s.MunicipalityCode)
		b.Check(ok, "cLocPrestacao must be a 7-digit IBGE code, got %q", s.MunicipalityCode)
	}
	b.Check(len(s.NationalTaxCode) == 6 && dps.IsDigits(s.NationalTaxCode),
		"cTribNac must have 6 digits, got %q", s.NationalTaxCode)
	if s.MunicipalTaxCode != "" {
		b.Check(len(s.MunicipalTaxCode) == 3 && dps.IsDigits(s.MunicipalTaxCode),
			"cTribMun must have 3 digits, got %q", s.MunicipalTaxCode)
	}
	if s.NBSCode != "" {
		b.Check(len(s.NBSCode) == 9 && dps.IsDigits(s.NBSCode), "cNBS must have 9 digits, got %q", s.NBSCode)
	}

	n := utf8.RuneCountInString(s.Description)
	b.Check(n >= 1 && n <= maxDescription, "xDescServ must have 1 to %d characters, got %d", maxDescription, n)
	b.Check(!reMarkup.MatchString(s.Description), "xDescServ must be plain text, markup found")
	b.Check(!hasControl(s.Description), "xDescServ contains control characters")
	return b.Report()
}

// CheckValues validates amounts and cross-checks base, ISS and net. Drift
// above one cent is a warning: rounding differences are expected.
func CheckValues(doc *dps.Document) report.Report {
	b := report.NewBuilder("values")
	v := doc.Values
	b.Check(v.Gross.IsPositive(), "vServ must be positive, got %s", dps.FormatMoney(v.Gross))
	for _, f := range []struct {
		tag string
		val decimal.Decimal
	}{
		{"vReceb", v.Received},
		{"vDescIncond", v.DiscountUnconditioned},
		{"vDescCond", v.DiscountConditioned},
		{"vDR", v.Deduction},
		{"pAliq", v.ISSRate},
	} {
		b.Check(!f.val.IsNegative(), "%s must not be negative, got %s", f.tag, f.val.String())
	}
	b.Check(v.Deduction.Add(v.DiscountUnconditioned).LessThanOrEqual(v.Gross),
		"deductions and unconditioned discount exceed vServ")

	base, iss, net := v.Totals()
	drift(b, "base", v.Base, base, "vServ − vDR − vDescIncond")
	drift(b, "ISS", v.ISSAmount, iss, "base × pAliq / 100")
	drift(b, "net", v.Net, net, "vServ − ISS")
	return b.Report()
}

// CheckTaxation validates tribMun against the place of provision.
func CheckTaxation(doc *dps.Document) report.Report {
	b := report.NewBuilder("taxation")
	t := doc.Taxation
	b.Check(t.ISSQN >= dps.TaxationTaxable && t.ISSQN <= dps.TaxationNonIncidence,
		"tribISSQN must be between 1 and 4, got %d", t.ISSQN)
	b.Check(t.Retention >= dps.RetentionNone && t.Retention <= dps.RetentionByIntermediary,
		"tpRetISSQN must be 1, 2 or 3, got %d", t.Retention)

	switch t.ISSQN {
	case dps.TaxationExport:
		b.Check(doc.Service.Abroad(), "export taxation requires a non-BR country of provision")
		b.Check(reCountry.MatchString(t.ResultCountry) && t.ResultCountry != "BR",
			"cPaisResult must be a non-BR ISO alpha-2 code, got %q", t.ResultCountry)
	case dps.TaxationImmune:
		b.Check(t.ImmunityType >= 0 && t.ImmunityType <= 5, "tpImunidade must be between 0 and 5, got %d", t.ImmunityType)
	case dps.TaxationTaxable:
		if doc.Service.Abroad() {
			b.Warnf("service provided abroad (%s) but taxed as domestic", doc.Service.CountryCode)
		}
		rate := doc.Values.ISSRate
		if rate.LessThan(minISSRate) || rate.GreaterThan(maxISSRate) {
			b.Warnf("ISS rate %s%% outside the 2%% to 5%% range", rate.StringFixed(2))
		}
	}
	return b.Report()
}

func checkFederalID(b *report.Builder, id dps.FederalID) {
	switch v := id.(type) {
	case dps.CNPJ:
		b.Check(v.Valid(), "CNPJ %q is invalid", string(v))
	case dps.CPF:
		b.Check(v.Valid(), "CPF %q is invalid", string(v))
	}
}

func checkName(b *report.Builder, name string) {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	b.Check(n >= 1 && n <= maxName, "xNome must have 1 to %d characters, got %d", maxName, n)
}

func checkContact(b *report.Builder, phone, email string) {
	if phone != "" {
		b.Check(dps.IsDigits(phone) && len(phone) >= 6 && len(phone) <= 20, "fone must have 6 to 20 digits, got %q", phone)
	}
	if email != "" {
		b.Check(reEmail.MatchString(email) && len(email) <= 80, "email %q is invalid", email)
	}
}

// checkAddress requires every field of the end group. For national
// addresses a state that disagrees with the IBGE prefix is a warning.
func checkAddress(b *report.Builder, a *dps.Address) {
	b.Check(strings.TrimSpace(a.Street) != "", "address street (xLgr) is required")
	b.Check(strings.TrimSpace(a.Number) != "", "address number (nro) is required")
	b.Check(strings.TrimSpace(a.District) != "", "address neighborhood (xBairro) is required")

	switch loc := a.Location.(type) {
	case dps.NationalLocation:
		ibgeState, ok := dps.StateOf(loc.MunicipalityCode)
		b.Check(ok, "address municipality code (cMun) must be a 7-digit IBGE code, got %q", loc.MunicipalityCode)
		if b.Check(dps.ValidState(loc.State), "address state (UF) is required, got %q", loc.State) && ok && ibgeState != loc.State {
			b.Warnf("address state %s does not match municipality %s (%s)", loc.State, loc.MunicipalityCode, ibgeState)
		}
		b.Check(len(loc.PostalCode) == 8 && dps.IsDigits(loc.PostalCode), "address postal code (CEP) must have 8 digits, got %q", loc.PostalCode)
	case dps.ForeignLocation:
		b.Check(reCountry.MatchString(loc.CountryCode) && loc.CountryCode != "BR",
			"foreign address country must be a non-BR ISO alpha-2 code, got %q", loc.CountryCode)
		b.Check(strings.TrimSpace(loc.City) != "", "foreign address city is required")
		b.Check(strings.TrimSpace(loc.PostalCode) != "", "foreign address postal code is required")
	default:
		b.Check(false, "address municipality code, state and postal code are required")
	}
}

func drift(b *report.Builder, name string, got, want decimal.Decimal, formula string) {
	if got.Sub(want).Abs().GreaterThan(dps.Cent) {
		b.Warnf("%s %s differs from %s = %s", name, dps.FormatMoney(got), formula, dps.FormatMoney(want))
	}
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func joinErrors(list []error) string {
	parts := make([]string, len(list))
	for i, err := range list {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
