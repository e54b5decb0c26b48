package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// MockSequenceReservoir is a mock implementation of ports.SequenceReservoir.
type MockSequenceReservoir struct {
	ReserveNextFunc func(ctx context.Context, series int) (int64, error)

	mu    sync.Mutex
	Calls []int
}

func (m *MockSequenceReservoir) ReserveNext(ctx context.Context, series int) (int64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, series)
	n := int64(len(m.Calls))
	m.mu.Unlock()
	if m.ReserveNextFunc != nil {
		return m.ReserveNextFunc(ctx, series)
	}
	return n, nil
}

// MockMunicipalityResolver is a mock implementation of ports.MunicipalityResolver.
// Without a func it resolves from Codes keyed by "CITY/UF" (upper case).
type MockMunicipalityResolver struct {
	ResolveMunicipalityFunc func(ctx context.Context, city, state string) (string, error)
	Codes                   map[string]string
}

func (m *MockMunicipalityResolver) ResolveMunicipality(ctx context.Context, city, state string) (string, error) {
	if m.ResolveMunicipalityFunc != nil {
		return m.ResolveMunicipalityFunc(ctx, city, state)
	}
	key := strings.ToUpper(city) + "/" + strings.ToUpper(state)
	if code, ok := m.Codes[key]; ok {
		return code, nil
	}
	return "", fmt.Errorf("municipality %s not found", key)
}

// DefaultResolver resolves the cities used by the fixtures.
func DefaultResolver() *MockMunicipalityResolver {
	return &MockMunicipalityResolver{Codes: map[string]string{
		"SAO PAULO/SP":      SaoPauloIBGE,
		"RIO DE JANEIRO/RJ": RioDeJaneiroIBGE,
	}}
}

// MockSchemaValidator is a mock implementation of ports.SchemaValidator.
type MockSchemaValidator struct {
	ValidateFunc func(xmlData []byte) (report.Report, error)
	Validated    [][]byte
}

func (m *MockSchemaValidator) Validate(xmlData []byte) (report.Report, error) {
	m.Validated = append(m.Validated, xmlData)
	if m.ValidateFunc != nil {
		return m.ValidateFunc(xmlData)
	}
	return report.New(), nil
}

var (
	_ ports.SequenceReservoir    = (*MockSequenceReservoir)(nil)
	_ ports.MunicipalityResolver = (*MockMunicipalityResolver)(nil)
	_ ports.SchemaValidator      = (*MockSchemaValidator)(nil)
)
