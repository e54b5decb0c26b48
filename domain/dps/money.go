package dps

import (
	"github.com/shopspring/decimal"
)

// Cent é o menor valor monetário representável (0,01).
var Cent = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Significant informa se o valor, arredondado a centavos, não é zero.
// Elementos monetários opcionais abaixo de um centavo são omitidos.
func Significant(v decimal.Decimal) bool {
	return v.Round(2).Abs().GreaterThanOrEqual(Cent)
}

// FormatMoney renderiza com duas casas e ponto decimal, sem notação científica.
func FormatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

// ISSFor calcula o ISS sobre a base com a alíquota percentual, em centavos.
func ISSFor(base, ratePercent decimal.Decimal) decimal.Decimal {
	return base.Mul(ratePercent).Div(hundred).Round(2)
}

// Totals calcula base de cálculo, ISS e valor líquido a partir dos valores
// informados: base = bruto − deduções − descontos incondicionados;
// ISS = base × alíquota / 100; líquido = bruto − ISS.
func (v Values) Totals() (base, iss, net decimal.Decimal) {
	base = v.Gross.Sub(v.Deduction).Sub(v.DiscountUnconditioned)
	if base.IsNegative() {
		base = decimal.Zero
	}
	iss = ISSFor(base, v.ISSRate)
	net = v.Gross.Sub(iss)
	return base, iss, net
}
