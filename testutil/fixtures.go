// Package testutil provides deterministic fixtures, certificates and port
// mocks shared by the package tests.
package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/order"
)

const (
	ProviderCNPJ     = "11222333000181"
	CustomerCPF      = "52998224725"
	CustomerCNPJ     = "12345678000195"
	SaoPauloIBGE     = "3550308"
	RioDeJaneiroIBGE = "3304557"
)

// BRT is the fixed -03:00 offset used for emission timestamps.
var BRT = time.FixedZone("BRT", -3*60*60)

// IssuedAt is the fixed emission instant used by fixtures.
var IssuedAt = time.Date(2025, time.March, 10, 14, 30, 0, 0, BRT)

// SampleDocument returns a taxable document for an individual customer without address.
func SampleDocument() *dps.Document {
	id, err := dps.NewID(SaoPauloIBGE, dps.CNPJ(ProviderCNPJ), 1, 42)
	if err != nil {
		panic(err)
	}
	doc := &dps.Document{
		ID:                  id,
		Environment:         dps.Staging,
		IssuedAt:            IssuedAt,
		AppVersion:          "nfse-dps/1.0.0",
		Series:              1,
		Number:              42,
		CompetenceDate:      time.Date(2025, time.March, 10, 0, 0, 0, 0, BRT),
		EmitterType:         dps.EmitterProvider,
		EmitterMunicipality: SaoPauloIBGE,
		Provider: dps.Provider{
			TaxID:                 dps.CNPJ(ProviderCNPJ),
			MunicipalRegistration: "12345678",
			Name:                  "Loja Exemplo Servicos Digitais Ltda",
			Address: &dps.Address{
				Location: dps.NationalLocation{MunicipalityCode: SaoPauloIBGE, State: "SP", PostalCode: "01310100"},
				Street:   "Avenida Paulista",
				Number:   "1000",
				District: "Bela Vista",
			},
			Phone: "11987654321",
			Email: "fiscal@lojaexemplo.com.br",
			Regime: dps.TaxRegime{
				SimplesNacional: dps.SimplesMEEPP,
				SNRegime:        1,
				SpecialRegime:   0,
			},
		},
		Customer: &dps.Customer{
			Identity: dps.CPF(CustomerCPF),
			Name:     "Maria da Silva",
			Email:    "maria@example.com",
			Phone:    "21998765432",
		},
		Service: dps.Service{
			MunicipalityCode: SaoPauloIBGE,
			CountryCode:      "BR",
			NationalTaxCode:  "010701",
			MunicipalTaxCode: "001",
			Description:      "Desenvolvimento de software sob encomenda",
		},
		Values: dps.Values{
			Gross:   decimal.RequireFromString("1000.00"),
			ISSRate: decimal.RequireFromString("5.00"),
		},
		Taxation: dps.Taxation{
			ISSQN:     dps.TaxationTaxable,
			Retention: dps.RetentionNone,
		},
	}
	doc.Values.Base, doc.Values.ISSAmount, doc.Values.Net = doc.Values.Totals()
	return doc
}

// CompanyCustomer returns a company customer with a complete national address.
func CompanyCustomer() *dps.Customer {
	return &dps.Customer{
		Identity: dps.CNPJ(CustomerCNPJ),
		Name:     "Cliente Corporativo S.A.",
		Address: &dps.Address{
			Location: dps.NationalLocation{MunicipalityCode: RioDeJaneiroIBGE, State: "RJ", PostalCode: "20040002"},
			Street:   "Rua da Assembleia",
			Number:   "10",
			District: "Centro",
		},
		Email: "contas@cliente.com.br",
	}
}

// SampleProvider returns the provider profile matching SampleDocument.
func SampleProvider() order.Provider {
	return order.Provider{
		CNPJ:                  "11.222.333/0001-81",
		MunicipalRegistration: "12345678",
		Name:                  "Loja Exemplo Servicos Digitais Ltda",
		Street:                "Avenida Paulista",
		Number:                "1000",
		District:              "Bela Vista",
		MunicipalityCode:      SaoPauloIBGE,
		State:                 "SP",
		PostalCode:            "01310-100",
		Phone:                 "(11) 98765-4321",
		Email:                 "fiscal@lojaexemplo.com.br",
		SimplesNacional:       3,
		SNRegime:              1,
	}
}

// SampleSettings returns emission settings matching SampleDocument.
func SampleSettings() order.Settings {
	return order.Settings{
		Environment:      2,
		Series:           1,
		AppVersion:       "nfse-dps/1.0.0",
		NationalTaxCode:  "010701",
		MunicipalTaxCode: "001",
		ISSRate:          "5,00",
		ISSRetention:     1,
		Location:         BRT,
	}
}

// SampleOrder returns an order from an individual customer without address.
func SampleOrder() order.Snapshot {
	return order.Snapshot{
		ID:            "1001",
		Status:        "completed",
		CreatedAt:     IssuedAt,
		PaymentMethod: "pix",
		Billing: order.Billing{
			FirstName: "Maria",
			LastName:  "da Silva",
			CPF:       "529.982.247-25",
			Email:     "maria@example.com",
			Phone:     "(21) 99876-5432",
			Country:   "BR",
		},
		Items: []order.Item{
			{Name: "Desenvolvimento de software sob encomenda", Quantity: 1, UnitPrice: "1.000,00", Total: "1.000,00"},
		},
		Subtotal: "1.000,00",
		Total:    "1.000,00",
	}
}

// CompanyOrder returns an order from a company customer in Rio de Janeiro.
func CompanyOrder() order.Snapshot {
	o := SampleOrder()
	o.ID = "1002"
	o.Billing = order.Billing{
		FirstName:    "Joao",
		LastName:     "Souza",
		Company:      "Cliente Corporativo S.A.",
		CNPJ:         "12.345.678/0001-95",
		Email:        "contas@cliente.com.br",
		Phone:        "(21) 3333-4444",
		Address1:     "Rua da Assembleia",
		Number:       "10",
		Neighborhood: "Centro",
		City:         "Rio de Janeiro",
		State:        "RJ",
		Postcode:     "20040-002",
		Country:      "BR",
	}
	return o
}
