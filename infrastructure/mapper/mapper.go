// Package mapper converts an order snapshot into a typed DPS document. It
// sanitizes free text, parses monetary input and resolves municipality codes,
// failing closed when any mandatory field is missing.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/domain/order"
)

const (
	op = "mapper"

	// MaxName is the xNome limit.
	MaxName = 300

	// Número usado quando o endereço não informa nro.
	noNumber = "S/N"
)

// Mapper builds documents for one provider profile.
type Mapper struct {
	provider     dps.Provider
	municipality string
	settings     order.Settings
	issRate      decimal.Decimal
	resolver     ports.MunicipalityResolver
	now          func() time.Time
	log          *slog.Logger
}

// New validates the provider profile and settings once so Build only deals
// with order data.
func New(provider order.Provider, settings order.Settings, resolver ports.MunicipalityResolver, log *slog.Logger) (*Mapper, error) {
	if log == nil {
		log = slog.Default()
	}
	if resolver == nil {
		return nil, errs.Wrap(errs.ErrConfig, op, fmt.Errorf("municipality resolver is required"))
	}

	cnpj, cpf := dps.OnlyDigits(provider.CNPJ), dps.OnlyDigits(provider.CPF)
	var taxID dps.FederalID
	switch {
	case cnpj != "" && cpf != "":
		return nil, errs.Wrap(errs.ErrConfig, op, fmt.Errorf("provider must have either CNPJ or CPF, not both"))
	case cnpj != "":
		if len(cnpj) != 14 {
			return nil, &errs.Error{Class: errs.ErrConfig, Op: op, Field: "provider.cnpj", Expected: "14 digits", Actual: provider.CNPJ}
		}
		taxID = dps.CNPJ(cnpj)
	case cpf != "":
		id, err := dps.NewFederalID(cpf)
		if err != nil {
			return nil, errs.Wrap(errs.ErrConfig, op, err)
		}
		taxID = id
	default:
		return nil, &errs.Error{Class: errs.ErrConfig, Op: op, Field: "provider.cnpj", Expected: "CNPJ or CPF"}
	}

	if _, ok := dps.StateOf(provider.MunicipalityCode); !ok {
		return nil, &errs.Error{Class: errs.ErrConfig, Op: op, Field: "provider.municipality_code",
			Expected: "7-digit IBGE code", Actual: provider.MunicipalityCode}
	}

	rate, err := ParseMoney(settings.ISSRate)
	if err != nil {
		return nil, &errs.Error{Class: errs.ErrConfig, Op: op, Field: "settings.iss_rate", Err: err}
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}

	p := dps.Provider{
		TaxID:                 taxID,
		MunicipalRegistration: strings.TrimSpace(provider.MunicipalRegistration),
		Name:                  Truncate(SanitizeText(provider.Name, false), MaxName),
		Phone:                 dps.OnlyDigits(provider.Phone),
		Email:                 strings.ToLower(strings.TrimSpace(provider.Email)),
		Regime: dps.TaxRegime{
			SimplesNacional: dps.SimplesNacional(provider.SimplesNacional),
			SNRegime:        provider.SNRegime,
			SpecialRegime:   provider.SpecialRegime,
		},
	}
	if provider.Street != "" {
		p.Address = &dps.Address{
			Location: dps.NationalLocation{
				MunicipalityCode: provider.MunicipalityCode,
				State:            strings.ToUpper(strings.TrimSpace(provider.State)),
				PostalCode:       dps.OnlyDigits(provider.PostalCode),
			},
			Street:     SanitizeText(provider.Street, false),
			Number:     orDefault(SanitizeText(provider.Number, false), noNumber),
			Complement: SanitizeText(provider.Complement, false),
			District:   SanitizeText(provider.District, false),
		}
	}

	return &Mapper{
		provider:     p,
		municipality: provider.MunicipalityCode,
		settings:     settings,
		issRate:      rate,
		resolver:     resolver,
		now:          time.Now,
		log:          log,
	}, nil
}

// WithClock replaces the emission clock.
func (m *Mapper) WithClock(now func() time.Time) *Mapper {
	m.now = now
	return m
}

// Build maps snapshot into a document numbered sequence. The result is either
// complete or nil with an error; partial documents are never returned.
func (m *Mapper) Build(ctx context.Context, snapshot order.Snapshot, sequence int64) (*dps.Document, error) {
	if sequence < 1 || sequence > dps.MaxNumber {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "sequence",
			Expected: fmt.Sprintf("1..%d", int64(dps.MaxNumber)), Actual: fmt.Sprint(sequence)}
	}

	country, err := NormalizeCountry(snapshot.Billing.Country)
	if err != nil {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "billing.country", Err: err}
	}
	customer, err := m.customer(ctx, snapshot.Billing, country)
	if err != nil {
		return nil, err
	}
	values, err := m.values(snapshot)
	if err != nil {
		return nil, err
	}
	description, err := m.description(snapshot)
	if err != nil {
		return nil, err
	}

	id, err := dps.NewID(m.municipality, m.provider.TaxID, m.settings.Series, sequence)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInput, op, err)
	}

	loc := m.settings.Location
	issuedAt := m.now().In(loc).Truncate(time.Second)
	competence := issuedAt
	if !snapshot.CreatedAt.IsZero() && !snapshot.CreatedAt.After(issuedAt) {
		competence = snapshot.CreatedAt.In(loc)
	}

	doc := &dps.Document{
		ID:                  id,
		Environment:         dps.Environment(m.settings.Environment),
		IssuedAt:            issuedAt,
		AppVersion:          m.settings.AppVersion,
		Series:              m.settings.Series,
		Number:              sequence,
		CompetenceDate:      time.Date(competence.Year(), competence.Month(), competence.Day(), 0, 0, 0, 0, loc),
		EmitterType:         dps.EmitterProvider,
		EmitterMunicipality: m.municipality,
		Provider:            m.provider,
		Customer:            customer,
		Service: dps.Service{
			MunicipalityCode: m.municipality,
			CountryCode:      country,
			NationalTaxCode:  m.settings.NationalTaxCode,
			MunicipalTaxCode: m.settings.MunicipalTaxCode,
			NBSCode:          m.settings.NBSCode,
			Description:      description,
		},
		Values: values,
		Taxation: dps.Taxation{
			ISSQN:     dps.TaxationTaxable,
			Retention: dps.ISSRetention(m.settings.ISSRetention),
		},
	}
	if doc.Taxation.Retention == 0 {
		doc.Taxation.Retention = dps.RetentionNone
	}
	if country != Brazil {
		doc.Taxation.ISSQN = dps.TaxationExport
		doc.Taxation.ResultCountry = country
	}

	m.log.Debug("dps document built",
		slog.String("order_id", snapshot.ID),
		slog.String("dps_id", id.String()),
		slog.Int("series", m.settings.Series),
		slog.Int64("sequence", sequence))
	return doc, nil
}

func (m *Mapper) customer(ctx context.Context, b order.Billing, country string) (*dps.Customer, error) {
	c := &dps.Customer{
		Phone: dps.OnlyDigits(b.Phone),
		Email: strings.ToLower(strings.TrimSpace(b.Email)),
	}

	switch {
	case country != Brazil:
		if nif := strings.TrimSpace(b.ForeignTaxID); nif != "" {
			c.Identity = dps.ForeignNIF(nif)
		} else {
			c.Identity = dps.NoNIFNotInformed
		}
	case len(dps.OnlyDigits(b.CNPJ)) == 14:
		c.Identity = dps.CNPJ(dps.OnlyDigits(b.CNPJ))
	default:
		raw := b.CPF
		if dps.OnlyDigits(raw) == "" {
			raw = b.CNPJ
		}
		if dps.OnlyDigits(raw) == "" {
			return nil, errs.Input(op, "billing.cpf", "CPF or CNPJ", "")
		}
		id, err := dps.NewFederalID(raw)
		if err != nil {
			return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "billing.cpf", Err: err}
		}
		c.Identity = id
	}

	name := SanitizeText(strings.TrimSpace(b.FirstName+" "+b.LastName), false)
	if c.IsCompany() && strings.TrimSpace(b.Company) != "" {
		name = SanitizeText(b.Company, false)
	}
	if name == "" {
		return nil, errs.Input(op, "billing.name", "customer name", "")
	}
	c.Name = Truncate(name, MaxName)

	if !b.HasAddress() {
		if c.IsCompany() {
			return nil, errs.Input(op, "billing.address", "address for a company customer", "")
		}
		return c, nil
	}
	addr, err := m.address(ctx, b, country)
	if err != nil {
		return nil, err
	}
	c.Address = addr
	return c, nil
}

func (m *Mapper) address(ctx context.Context, b order.Billing, country string) (*dps.Address, error) {
	a := &dps.Address{
		Street:     SanitizeText(b.Address1, false),
		Number:     orDefault(SanitizeText(b.Number, false), noNumber),
		Complement: SanitizeText(b.Address2, false),
		District:   SanitizeText(b.Neighborhood, false),
	}
	if a.Street == "" {
		return nil, errs.Input(op, "billing.address_1", "street", "")
	}

	if country != Brazil {
		a.Location = dps.ForeignLocation{
			CountryCode: country,
			PostalCode:  strings.TrimSpace(b.Postcode),
			City:        SanitizeText(b.City, false),
			Region:      SanitizeText(b.State, false),
		}
		return a, nil
	}

	state := strings.ToUpper(strings.TrimSpace(b.State))
	city := SanitizeText(b.City, false)
	if city == "" || state == "" {
		return nil, errs.Input(op, "billing.city", "city and state", city+"/"+state)
	}
	code, err := m.resolver.ResolveMunicipality(ctx, city, state)
	if err != nil {
		m.log.Warn("municipality lookup failed",
			slog.String("city", city),
			slog.String("state", state),
			slog.String("error", err.Error()))
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "billing.city", Actual: city + "/" + state, Err: err}
	}
	if _, ok := dps.StateOf(code); !ok {
		return nil, &errs.Error{Class: errs.ErrInput, Op: op, Field: "billing.city",
			Expected: "7-digit IBGE code", Actual: code}
	}

	postal := dps.OnlyDigits(b.Postcode)
	if len(postal) != 8 {
		return nil, errs.Input(op, "billing.postcode", "8 digits", b.Postcode)
	}
	a.Location = dps.NationalLocation{MunicipalityCode: code, State: state, PostalCode: postal}
	return a, nil
}

func (m *Mapper) values(s order.Snapshot) (dps.Values, error) {
	raw, field := s.Subtotal, "subtotal"
	if strings.TrimSpace(raw) == "" {
		raw, field = s.Total, "total"
	}
	if strings.TrimSpace(raw) == "" {
		return dps.Values{}, errs.Input(op, "total", "order amount", "")
	}
	gross, err := ParseMoney(raw)
	if err != nil {
		return dps.Values{}, &errs.Error{Class: errs.ErrInput, Op: op, Field: field, Err: err}
	}
	if !gross.Round(2).IsPositive() {
		return dps.Values{}, errs.Input(op, field, "positive amount", raw)
	}
	discount, err := optionalMoney(s.DiscountTotal)
	if err != nil {
		return dps.Values{}, &errs.Error{Class: errs.ErrInput, Op: op, Field: "discount_total", Err: err}
	}
	discount = discount.Abs()

	v := dps.Values{
		Gross:                 gross.Round(2),
		DiscountUnconditioned: discount.Round(2),
		ISSRate:               m.issRate,
	}
	v.Base, v.ISSAmount, v.Net = v.Totals()
	return v, nil
}

func (m *Mapper) description(s order.Snapshot) (string, error) {
	text := m.settings.ServiceDescription
	if strings.TrimSpace(text) == "" {
		names := make([]string, 0, len(s.Items))
		for _, item := range s.Items {
			if name := strings.TrimSpace(item.Name); name != "" {
				names = append(names, name)
			}
		}
		text = strings.Join(names, "; ")
	}
	// Sanitiza antes de medir: o limite vale para o texto final.
	text = SanitizeText(text, true)
	if text == "" {
		return "", errs.Input(op, "description", "service description", "")
	}
	return Truncate(text, MaxDescription), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var _ ports.Mapper = (*Mapper)(nil)
