package dps

// Os dois primeiros dígitos do código IBGE de município identificam a UF.
var ibgeStates = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

// StateOf retorna a UF de um código IBGE de 7 dígitos.
func StateOf(municipalityCode string) (string, bool) {
	if len(municipalityCode) != 7 || !IsDigits(municipalityCode) {
		return "", false
	}
	uf, ok := ibgeStates[municipalityCode[:2]]
	return uf, ok
}

// ValidState informa se uf é uma sigla de unidade federativa.
func ValidState(uf string) bool {
	for _, s := range ibgeStates {
		if s == uf {
			return true
		}
	}
	return false
}
