package dps

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidCPF(t *testing.T) {
	tests := []struct {
		cpf  string
		want bool
	}{
		{"52998224725", true},
		{"12345678909", true},
		{"52998224724", false},
		{"11111111111", false},
		{"5299822472", false},
		{"5299822472a", false},
	}
	for _, tt := range tests {
		if got := ValidCPF(tt.cpf); got != tt.want {
			t.Errorf("ValidCPF(%q) = %v, want %v", tt.cpf, got, tt.want)
		}
	}
}

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		cnpj string
		want bool
	}{
		{"11222333000181", true},
		{"12345678000195", true},
		{"98765432000198", true},
		{"11222333000180", false},
		{"00000000000000", false},
		{"1122233300018", false},
	}
	for _, tt := range tests {
		if got := ValidCNPJ(tt.cnpj); got != tt.want {
			t.Errorf("ValidCNPJ(%q) = %v, want %v", tt.cnpj, got, tt.want)
		}
	}
}

func TestNewFederalID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType InscriptionType
		want     string
		wantErr  bool
	}{
		{"formatted cnpj", "11.222.333/0001-81", InscriptionCNPJ, "11222333000181", false},
		{"formatted cpf", "529.982.247-25", InscriptionCPF, "52998224725", false},
		{"cpf lost leading zeros", "1234567890", InscriptionCPF, "01234567890", false},
		{"empty", "", 0, "", true},
		{"too long", "123456789012345", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewFederalID(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.InscriptionType() != tt.wantType {
				t.Errorf("expected type %d, got %d", tt.wantType, id.InscriptionType())
			}
			if id.Digits() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, id.Digits())
			}
		})
	}
}

func TestStateOf(t *testing.T) {
	if uf, ok := StateOf("3550308"); !ok || uf != "SP" {
		t.Errorf("expected SP, got %s (%v)", uf, ok)
	}
	if uf, ok := StateOf("5300108"); !ok || uf != "DF" {
		t.Errorf("expected DF, got %s (%v)", uf, ok)
	}
	if _, ok := StateOf("9900000"); ok {
		t.Error("expected unknown prefix to fail")
	}
	if !ValidState("RS") || ValidState("XX") {
		t.Error("unexpected ValidState result")
	}
}

func TestValues_Totals(t *testing.T) {
	v := Values{
		Gross:                 decimal.RequireFromString("1000.00"),
		Deduction:             decimal.RequireFromString("100.00"),
		DiscountUnconditioned: decimal.RequireFromString("50.00"),
		ISSRate:               decimal.RequireFromString("5"),
	}
	base, iss, net := v.Totals()
	if base.StringFixed(2) != "850.00" {
		t.Errorf("base: got %s", base.StringFixed(2))
	}
	if iss.StringFixed(2) != "42.50" {
		t.Errorf("iss: got %s", iss.StringFixed(2))
	}
	if net.StringFixed(2) != "957.50" {
		t.Errorf("net: got %s", net.StringFixed(2))
	}
}

func TestSignificant(t *testing.T) {
	tests := []struct {
		v    string
		want bool
	}{
		{"0", false},
		{"0.004", false},
		{"0.005", true},
		{"0.01", true},
		{"-2.50", true},
	}
	for _, tt := range tests {
		if got := Significant(decimal.RequireFromString(tt.v)); got != tt.want {
			t.Errorf("Significant(%s) = %v, want %v", tt.v, got, tt.want)
		}
	}
	if got := FormatMoney(decimal.RequireFromString("1e3")); got != "1000.00" {
		t.Errorf("FormatMoney: got %s", got)
	}
}
