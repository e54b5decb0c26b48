// Package dps contém o modelo tipado da Declaração de Prestação de Serviços
// (DPS) do padrão nacional da NFS-e, layout 1.00.
package dps

import (
	"time"

	"github.com/shopspring/decimal"
)

// Environment identifica o ambiente de emissão (tpAmb).
type Environment int

const (
	Production Environment = 1
	Staging    Environment = 2
)

func (e Environment) Valid() bool { return e == Production || e == Staging }

// EmitterType identifica quem emite a DPS (tpEmit). Só o prestador é suportado.
type EmitterType int

const EmitterProvider EmitterType = 1

// ISSQNTaxation é o tipo de tributação municipal do ISSQN (tribISSQN).
type ISSQNTaxation int

const (
	TaxationTaxable      ISSQNTaxation = 1
	TaxationExport       ISSQNTaxation = 2
	TaxationImmune       ISSQNTaxation = 3
	TaxationNonIncidence ISSQNTaxation = 4
)

// ISSRetention é o tipo de retenção do ISSQN (tpRetISSQN).
type ISSRetention int

const (
	RetentionNone           ISSRetention = 1
	RetentionByCustomer     ISSRetention = 2
	RetentionByIntermediary ISSRetention = 3
)

// TotalTaxIndicator é fixo em 0 (indTotTrib) conforme o Decreto 8.264/2014.
const TotalTaxIndicator = 0

// SimplesNacional é a situação do prestador perante o Simples Nacional (opSimpNac).
type SimplesNacional int

const (
	SimplesNotOpted SimplesNacional = 1
	SimplesMEI      SimplesNacional = 2
	SimplesMEEPP    SimplesNacional = 3
)

// Document é a representação canônica de uma DPS antes da serialização.
// Uma vez serializado, não deve ser alterado.
type Document struct {
	ID                  ID
	Environment         Environment
	IssuedAt            time.Time
	AppVersion          string
	Series              int
	Number              int64
	CompetenceDate      time.Time
	EmitterType         EmitterType
	EmitterMunicipality string

	Provider Provider
	Customer *Customer
	Service  Service
	Values   Values
	Taxation Taxation
}

// TaxRegime agrupa os indicadores de regime tributário do prestador (regTrib).
type TaxRegime struct {
	SimplesNacional SimplesNacional
	// SNRegime é o regime de apuração do Simples Nacional (regApTribSN); 0 omite.
	SNRegime      int
	SpecialRegime int
}

// Provider é o prestador do serviço.
type Provider struct {
	TaxID                 FederalID
	MunicipalRegistration string
	Name                  string
	Address               *Address
	Phone                 string
	Email                 string
	Regime                TaxRegime
}

// Customer é o tomador do serviço.
type Customer struct {
	Identity              Identity
	MunicipalRegistration string
	Name                  string
	Address               *Address
	Phone                 string
	Email                 string
}

// IsCompany informa se o tomador é pessoa jurídica.
func (c *Customer) IsCompany() bool {
	if c == nil {
		return false
	}
	_, ok := c.Identity.(CNPJ)
	return ok
}

// Address é um endereço nacional ou estrangeiro. Location define qual.
type Address struct {
	Location   Location
	Street     string
	Number     string
	Complement string
	District   string
}

// Location é a união entre NationalLocation e ForeignLocation.
type Location interface {
	location()
}

// NationalLocation corresponde ao grupo endNac.
type NationalLocation struct {
	MunicipalityCode string
	// State não é serializado (o código IBGE já identifica a UF), mas é
	// conferido pelas regras estruturais.
	State      string
	PostalCode string
}

// ForeignLocation corresponde ao grupo endExt.
type ForeignLocation struct {
	CountryCode string
	PostalCode  string
	City        string
	Region      string
}

func (NationalLocation) location() {}

func (ForeignLocation) location() {}

// Service descreve o serviço prestado.
type Service struct {
	// MunicipalityCode é o local da prestação quando CountryCode é BR.
	MunicipalityCode string
	CountryCode      string
	NationalTaxCode  string
	MunicipalTaxCode string
	NBSCode          string
	Description      string
}

// Abroad informa se o serviço foi prestado fora do Brasil.
func (s Service) Abroad() bool {
	return s.CountryCode != "" && s.CountryCode != "BR"
}

// PISCOFINS é o grupo piscofins da tributação federal.
type PISCOFINS struct {
	CST          string
	Base         decimal.Decimal
	RatePIS      decimal.Decimal
	RateCOFINS   decimal.Decimal
	AmountPIS    decimal.Decimal
	AmountCOFINS decimal.Decimal
	Retained     bool
}

// Retentions agrupa os valores federais retidos. Zero omite o elemento.
type Retentions struct {
	PISCOFINS *PISCOFINS
	INSS      decimal.Decimal
	IR        decimal.Decimal
	CSLL      decimal.Decimal
}

// Empty informa se não há nenhuma retenção federal a declarar.
func (r Retentions) Empty() bool {
	return r.PISCOFINS == nil && !Significant(r.INSS) && !Significant(r.IR) && !Significant(r.CSLL)
}

// Values agrupa os valores monetários da DPS.
type Values struct {
	Gross                 decimal.Decimal
	Received              decimal.Decimal
	DiscountUnconditioned decimal.Decimal
	DiscountConditioned   decimal.Decimal
	Deduction             decimal.Decimal
	Retentions            Retentions

	// ISSRate é a alíquota em percentual (5 significa 5%).
	ISSRate   decimal.Decimal
	Base      decimal.Decimal
	ISSAmount decimal.Decimal
	Net       decimal.Decimal
}

// Taxation agrupa os indicadores de tributação municipal.
type Taxation struct {
	ISSQN         ISSQNTaxation
	Retention     ISSRetention
	ResultCountry string
	ImmunityType  int
}
