package mapper

import (
	"testing"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		multiline bool
		want      string
	}{
		{"markup", "<p>Test <strong>description</strong></p>", false, "Test description"},
		{"entities", "Caf&eacute; &amp; P&atilde;o", false, "Café & Pão"},
		{"script dropped", "<script>alert(1)</script>Servico", false, "Servico"},
		{"blank lines collapsed", "linha 1\r\n\r\n\r\n  linha   2 ", true, "linha 1\nlinha 2"},
		{"block tags as lines", "<p>um</p><p>dois</p>", true, "um\ndois"},
		{"single line joins", "<p>um</p><p>dois</p>", false, "um dois"},
		{"control characters", "a\x00b\x07c\td", false, "abc d"},
		{"decomposed accents", "Servic\u0327o", false, "Servi\u00e7o"},
		{"plain text untouched", "Consultoria mensal", false, "Consultoria mensal"},
		{"only markup", "<br/><hr>", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.in, tt.multiline); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"ação", 2, "aç"},
		{"ab cd", 3, "ab"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.000,00", "1000.00", false},
		{"1000.00", "1000.00", false},
		{"1,234.56", "1234.56", false},
		{"R$ 12,5", "12.50", false},
		{"1.234.567", "1234567.00", false},
		{"  99 ", "99.00", false},
		{"0,004", "0.00", false},
		{"-10,00", "-10.00", false},
		{"1e3", "", true},
		{"1,2,3", "", true},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s := got.StringFixed(2); s != tt.want {
				t.Errorf("got %s, want %s", s, tt.want)
			}
		})
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "BR", false},
		{"br", "BR", false},
		{"BRA", "BR", false},
		{"Brasil", "BR", false},
		{"França", "FR", false},
		{" estados   unidos ", "US", false},
		{"pt", "PT", false},
		{"XYZW", "", true},
		{"1A", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCountry(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
