package ibge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/testutil"
)

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"São Paulo", "SAO PAULO"},
		{"  sao   paulo ", "SAO PAULO"},
		{"Santa Bárbara d'Oeste", "SANTA BARBARA D OESTE"},
		{"Embu-Guaçu", "EMBU GUACU"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTable(t *testing.T) {
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if table.Len() < 27 {
		t.Errorf("embedded table must carry every capital, got %d entries", table.Len())
	}

	tests := []struct {
		city, state string
		want        string
	}{
		{"São Paulo", "SP", testutil.SaoPauloIBGE},
		{"SAO PAULO", "sp", testutil.SaoPauloIBGE},
		{"rio de janeiro", "RJ", testutil.RioDeJaneiroIBGE},
		{"Brasilia", "DF", "5300108"},
	}
	for _, tt := range tests {
		code, err := table.ResolveMunicipality(context.Background(), tt.city, tt.state)
		if err != nil || code != tt.want {
			t.Errorf("%s/%s: got %q (%v), want %s", tt.city, tt.state, code, err, tt.want)
		}
	}

	_, err = table.ResolveMunicipality(context.Background(), "São Paulo", "RJ")
	if !errors.Is(err, ErrMunicipalityNotFound) || !errors.Is(err, errs.ErrInput) {
		t.Errorf("expected input-class not found, got %v", err)
	}
}

func TestParseTable_RejectsWrongState(t *testing.T) {
	_, err := ParseTable([]byte(`- {code: "3550308", name: "São Paulo", state: RJ}`))
	if err == nil {
		t.Fatal("expected error for code outside its state")
	}
}

func newIBGEServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/estados/SP/municipios":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":3509502,"nome":"Campinas"},{"id":3552205,"nome":"Sorocaba"},{"id":3304557,"nome":"Intrusa"}]`))
		case "/estados/RJ/municipios":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	var hits int32
	srv := newIBGEServer(t, &hits)
	c := NewClient(srv.URL, nil, nil)
	ctx := context.Background()

	code, err := c.ResolveMunicipality(ctx, "sorocaba", "SP")
	if err != nil || code != "3552205" {
		t.Fatalf("got %q (%v)", code, err)
	}

	// Código de outra UF na resposta é descartado.
	if _, err := c.ResolveMunicipality(ctx, "Intrusa", "SP"); !errors.Is(err, ErrMunicipalityNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := c.ResolveMunicipality(ctx, "Niterói", "RJ"); err == nil || errors.Is(err, ErrMunicipalityNotFound) {
		t.Errorf("server failure must not look like not found, got %v", err)
	}
	if _, err := c.ResolveMunicipality(ctx, "X", "ZZ"); !errors.Is(err, ErrMunicipalityNotFound) {
		t.Errorf("unknown state: expected not found, got %v", err)
	}
}

func TestCache(t *testing.T) {
	var hits int32
	srv := newIBGEServer(t, &hits)
	cache := NewCache(NewClient(srv.URL, nil, nil), time.Hour)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if code, err := cache.ResolveMunicipality(ctx, "Campinas", "SP"); err != nil || code != "3509502" {
			t.Fatalf("got %q (%v)", code, err)
		}
	}
	if hits != 1 {
		t.Errorf("expected one request while fresh, got %d", hits)
	}

	now = now.Add(2 * time.Hour)
	if _, err := cache.ResolveMunicipality(ctx, "campinas", "sp"); err != nil {
		t.Fatalf("ResolveMunicipality: %v", err)
	}
	if hits != 2 {
		t.Errorf("expired entry must be refreshed, got %d requests", hits)
	}

	// Falhas não são memorizadas.
	cache.ResolveMunicipality(ctx, "Nenhuma", "SP")
	cache.ResolveMunicipality(ctx, "Nenhuma", "SP")
	if hits != 4 {
		t.Errorf("failures must not be cached, got %d requests", hits)
	}
}

func TestChain(t *testing.T) {
	var hits int32
	srv := newIBGEServer(t, &hits)
	table, err := NewTable()
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	chain := Chain{table, NewClient(srv.URL, nil, nil)}
	ctx := context.Background()

	if code, err := chain.ResolveMunicipality(ctx, "São Paulo", "SP"); err != nil || code != testutil.SaoPauloIBGE {
		t.Fatalf("table hit: got %q (%v)", code, err)
	}
	if hits != 0 {
		t.Errorf("table hit must not reach the API")
	}
	if code, err := chain.ResolveMunicipality(ctx, "Sorocaba", "SP"); err != nil || code != "3552205" {
		t.Fatalf("remote hit: got %q (%v)", code, err)
	}

	_, err = chain.ResolveMunicipality(ctx, "Paraty", "RJ")
	if !errors.Is(err, ErrMunicipalityNotFound) || !errors.Is(err, errs.ErrInput) {
		t.Errorf("expected input-class not found, got %v", err)
	}
}
