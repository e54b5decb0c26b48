// Package order holds the read-only inputs of the data mapper: the order
// snapshot taken from the store and the provider profile.
package order

import "time"

// Snapshot is a point-in-time copy of an e-commerce order. Monetary fields are
// kept as received (decimal comma or point) and parsed by the mapper.
type Snapshot struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	PaymentMethod string    `json:"payment_method"`
	Billing       Billing   `json:"billing"`
	Items         []Item    `json:"items"`
	Subtotal      string    `json:"subtotal"`
	DiscountTotal string    `json:"discount_total"`
	Total         string    `json:"total"`
	CustomerNote  string    `json:"customer_note"`
}

// Billing carries the customer identity and address fields.
type Billing struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	CPF          string `json:"cpf"`
	CNPJ         string `json:"cnpj"`
	ForeignTaxID string `json:"foreign_tax_id"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address1     string `json:"address_1"`
	Number       string `json:"number"`
	Address2     string `json:"address_2"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

// HasAddress reports whether any street-level address field was supplied.
func (b Billing) HasAddress() bool {
	return b.Address1 != "" || b.Number != "" || b.Neighborhood != "" || b.City != "" || b.Postcode != ""
}

// Item is one order line.
type Item struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// Provider is the issuing company profile.
type Provider struct {
	CNPJ                  string `mapstructure:"cnpj"`
	CPF                   string `mapstructure:"cpf"`
	MunicipalRegistration string `mapstructure:"municipal_registration"`
	Name                  string `mapstructure:"name"`
	Street                string `mapstructure:"street"`
	Number                string `mapstructure:"number"`
	Complement            string `mapstructure:"complement"`
	District              string `mapstructure:"district"`
	MunicipalityCode      string `mapstructure:"municipality_code"`
	State                 string `mapstructure:"state"`
	PostalCode            string `mapstructure:"postal_code"`
	Phone                 string `mapstructure:"phone"`
	Email                 string `mapstructure:"email"`
	SimplesNacional       int    `mapstructure:"simples_nacional"`
	SNRegime              int    `mapstructure:"sn_regime"`
	SpecialRegime         int    `mapstructure:"special_regime"`
}

// Settings are the emission parameters that do not come from the order.
type Settings struct {
	Environment        int
	Series             int
	AppVersion         string
	NationalTaxCode    string
	MunicipalTaxCode   string
	NBSCode            string
	ISSRate            string
	ISSRetention       int
	ServiceDescription string
	Location           *time.Location
}
