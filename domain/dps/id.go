package dps

import (
	"errors"
	"fmt"
	"strconv"
)

// IDLength é o tamanho fixo do atributo Id de infDPS.
const IDLength = 45

const (
	idPrefix     = "DPS"
	federalWidth = 14
)

// Limites dos campos série (5 dígitos) e número (15 dígitos) do Id.
const (
	MaxSeries = 99999
	MaxNumber = 999999999999999
)

// ID é o identificador de 45 posições da DPS:
// "DPS" + cMun(7) + tipo de inscrição(1) + inscrição federal(14) + série(5) + número(15).
type ID struct {
	Municipality    string
	InscriptionType InscriptionType
	// FederalID tem sempre 14 dígitos; o CPF é completado com zeros à esquerda.
	FederalID string
	Series    int
	Number    int64
}

// NewID monta o identificador a partir dos dados do prestador.
func NewID(municipality string, taxID FederalID, series int, number int64) (ID, error) {
	if taxID == nil {
		return ID{}, errors.New("dps id: provider federal id is required")
	}
	id := ID{
		Municipality:    municipality,
		InscriptionType: taxID.InscriptionType(),
		FederalID:       fmt.Sprintf("%014s", taxID.Digits()),
		Series:          series,
		Number:          number,
	}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// String renderiza o identificador com todos os campos completados com zeros.
func (id ID) String() string {
	return fmt.Sprintf("%s%07s%d%014s%05d%015d",
		idPrefix, id.Municipality, id.InscriptionType, id.FederalID, id.Series, id.Number)
}

// Validate confere os cinco subcampos de tamanho fixo.
func (id ID) Validate() error {
	if problems := id.Problems(); len(problems) > 0 {
		return fmt.Errorf("dps id: %w", errors.Join(problems...))
	}
	return nil
}

// Problems lista um erro por subcampo inválido, na ordem do identificador.
func (id ID) Problems() []error {
	var errs []error
	if len(id.Municipality) != 7 || !IsDigits(id.Municipality) {
		errs = append(errs, fmt.Errorf("municipality code must have 7 digits, got %q", id.Municipality))
	}
	if id.InscriptionType != InscriptionCPF && id.InscriptionType != InscriptionCNPJ {
		errs = append(errs, fmt.Errorf("inscription type must be 1 (CPF) or 2 (CNPJ), got %d", id.InscriptionType))
	}
	if len(id.FederalID) != federalWidth || !IsDigits(id.FederalID) {
		errs = append(errs, fmt.Errorf("federal id must have 14 digits, got %q", id.FederalID))
	} else if !id.checksumOK() {
		errs = append(errs, fmt.Errorf("federal id %s fails the %s checksum", id.FederalID, id.kind()))
	}
	if id.Series < 0 || id.Series > MaxSeries {
		errs = append(errs, fmt.Errorf("series must fit 5 digits, got %d", id.Series))
	}
	if id.Number < 1 || id.Number > MaxNumber {
		errs = append(errs, fmt.Errorf("sequence number must fit 15 digits and be positive, got %d", id.Number))
	}
	return errs
}

func (id ID) kind() string {
	if id.InscriptionType == InscriptionCPF {
		return "CPF"
	}
	return "CNPJ"
}

func (id ID) checksumOK() bool {
	switch id.InscriptionType {
	case InscriptionCPF:
		return id.FederalID[:3] == "000" && ValidCPF(id.FederalID[3:])
	case InscriptionCNPJ:
		return ValidCNPJ(id.FederalID)
	}
	return false
}

// IDError descreve o subcampo inválido de um Id recebido.
type IDError struct {
	Field  string
	Offset int
	Value  string
	Reason string
}

func (e *IDError) Error() string {
	return fmt.Sprintf("dps id %s at offset %d (%q): %s", e.Field, e.Offset, e.Value, e.Reason)
}

// ParseID decompõe um Id de 45 posições. A remontagem com String reproduz a
// entrada byte a byte.
func ParseID(s string) (ID, error) {
	if len(s) != IDLength {
		return ID{}, &IDError{Field: "length", Value: s, Reason: fmt.Sprintf("expected %d characters, got %d", IDLength, len(s))}
	}
	if s[:3] != idPrefix {
		return ID{}, &IDError{Field: "prefix", Offset: 0, Value: s[:3], Reason: "expected literal DPS"}
	}
	fields := []struct {
		name  string
		start int
		end   int
	}{
		{"municipality", 3, 10},
		{"inscription type", 10, 11},
		{"federal id", 11, 25},
		{"series", 25, 30},
		{"sequence", 30, 45},
	}
	for _, f := range fields {
		if !IsDigits(s[f.start:f.end]) {
			return ID{}, &IDError{Field: f.name, Offset: f.start, Value: s[f.start:f.end], Reason: "expected digits only"}
		}
	}

	inscription := InscriptionType(s[10] - '0')
	if inscription != InscriptionCPF && inscription != InscriptionCNPJ {
		return ID{}, &IDError{Field: "inscription type", Offset: 10, Value: s[10:11], Reason: "expected 1 (CPF) or 2 (CNPJ)"}
	}
	series, _ := strconv.Atoi(s[25:30])
	number, _ := strconv.ParseInt(s[30:45], 10, 64)

	return ID{
		Municipality:    s[3:10],
		InscriptionType: inscription,
		FederalID:       s[11:25],
		Series:          series,
		Number:          number,
	}, nil
}
