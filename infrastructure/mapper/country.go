package mapper

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Brazil is the ISO alpha-2 code of domestic provision.
const Brazil = "BR"

// Country names and alpha-3 codes seen in store exports.
var countryAliases = map[string]string{
	"BRA": Brazil, "BRASIL": Brazil, "BRAZIL": Brazil,
	"USA": "US", "ESTADOS UNIDOS": "US", "UNITED STATES": "US",
	"PRT": "PT", "PORTUGAL": "PT",
	"ARG": "AR", "ARGENTINA": "AR",
	"URY": "UY", "URUGUAI": "UY", "URUGUAY": "UY",
	"PRY": "PY", "PARAGUAI": "PY", "PARAGUAY": "PY",
	"CHL": "CL", "CHILE": "CL",
	"DEU": "DE", "ALEMANHA": "DE", "GERMANY": "DE",
	"ESP": "ES", "ESPANHA": "ES", "SPAIN": "ES",
	"FRA": "FR", "FRANCA": "FR", "FRANCE": "FR",
	"GBR": "GB", "REINO UNIDO": "GB", "UNITED KINGDOM": "GB",
	"CAN": "CA", "CANADA": "CA",
}

// NormalizeCountry returns the ISO alpha-2 code for raw. Empty input is
// domestic.
func NormalizeCountry(raw string) (string, error) {
	s := fold(raw)
	if s == "" {
		return Brazil, nil
	}
	if code, ok := countryAliases[s]; ok {
		return code, nil
	}
	if len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z' {
		return s, nil
	}
	return "", fmt.Errorf("unknown country %q", raw)
}

// fold removes accents, upper-cases and collapses spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}
