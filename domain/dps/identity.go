package dps

import (
	"fmt"
	"strings"
)

// Identity é a identificação de um participante: CNPJ, CPF, NIF estrangeiro
// ou a ausência justificada de NIF. Os tipos são mutuamente exclusivos.
type Identity interface {
	identity()
}

// FederalID é uma inscrição federal brasileira (CNPJ ou CPF). O prestador só
// aceita este subconjunto de Identity.
type FederalID interface {
	Identity
	// Digits retorna a inscrição só com dígitos.
	Digits() string
	// InscriptionType retorna o tipo usado no Id da DPS.
	InscriptionType() InscriptionType
}

// InscriptionType é o dígito de tipo de inscrição do Id da DPS.
type InscriptionType int

const (
	InscriptionCPF  InscriptionType = 1
	InscriptionCNPJ InscriptionType = 2
)

// CNPJ de pessoa jurídica, 14 dígitos.
type CNPJ string

// CPF de pessoa física, 11 dígitos.
type CPF string

// ForeignNIF é o número de identificação fiscal de um tomador estrangeiro.
type ForeignNIF string

// NoNIF indica tomador sem NIF, com o motivo (cNaoNIF).
type NoNIF int

const (
	NoNIFNotInformed NoNIF = 0
	NoNIFExempt      NoNIF = 1
	NoNIFNotRequired NoNIF = 2
)

func (CNPJ) identity()       {}
func (CPF) identity()        {}
func (ForeignNIF) identity() {}
func (NoNIF) identity()      {}

func (c CNPJ) Digits() string { return OnlyDigits(string(c)) }

func (c CNPJ) InscriptionType() InscriptionType { return InscriptionCNPJ }

func (c CPF) Digits() string { return OnlyDigits(string(c)) }

func (c CPF) InscriptionType() InscriptionType { return InscriptionCPF }

// Valid confere tamanho e dígitos verificadores.
func (c CNPJ) Valid() bool { return ValidCNPJ(c.Digits()) }

// Valid confere tamanho e dígitos verificadores.
func (c CPF) Valid() bool { return ValidCPF(c.Digits()) }

// NewFederalID escolhe CNPJ quando a inscrição tem 14 dígitos e CPF caso
// contrário, completando o CPF com zeros à esquerda.
func NewFederalID(raw string) (FederalID, error) {
	digits := OnlyDigits(raw)
	switch {
	case len(digits) == 14:
		return CNPJ(digits), nil
	case len(digits) > 0 && len(digits) <= 11:
		return CPF(fmt.Sprintf("%011s", digits)), nil
	default:
		return nil, fmt.Errorf("federal id %q: expected 11 (CPF) or 14 (CNPJ) digits", raw)
	}
}

// OnlyDigits remove tudo que não for dígito ASCII.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsDigits informa se s é não vazio e só contém dígitos ASCII.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidCPF aplica o módulo 11 do CPF. Sequências repetidas são inválidas.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 || !IsDigits(cpf) || repeated(cpf) {
		return false
	}
	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		d := (sum * 10) % 11
		if d == 10 {
			d = 0
		}
		if d != int(cpf[n]-'0') {
			return false
		}
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidCNPJ aplica o módulo 11 do CNPJ. Sequências repetidas são inválidas.
func ValidCNPJ(cnpj string) bool {
	if len(cnpj) != 14 || !IsDigits(cnpj) || repeated(cnpj) {
		return false
	}
	for _, n := range []int{12, 13} {
		weights := cnpjWeights[13-n:]
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cnpj[i]-'0') * weights[i]
		}
		d := sum % 11
		if d < 2 {
			d = 0
		} else {
			d = 11 - d
		}
		if d != int(cnpj[n]-'0') {
			return false
		}
	}
	return true
}

func repeated(s string) bool {
	return strings.Count(s, s[:1]) == len(s)
}
