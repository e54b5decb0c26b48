package ibge

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lb-conn/nfse-dps/domain/dps"
)

//go:embed data/municipios.yaml
var embedded []byte

// Table resolves from a fixed list loaded at startup.
type Table struct {
	byKey map[string]Municipality
}

// NewTable loads the embedded list.
func NewTable() (*Table, error) {
	return ParseTable(embedded)
}

// ParseTable loads a YAML list of municipalities.
func ParseTable(data []byte) (*Table, error) {
	var list []Municipality
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse municipality table: %w", err)
	}
	t := &Table{byKey: make(map[string]Municipality, len(list))}
	for _, m := range list {
		uf, ok := dps.StateOf(m.Code)
		if !ok || uf != m.State {
			return nil, fmt.Errorf("municipality table: code %q does not belong to %s", m.Code, m.State)
		}
		t.byKey[Key(m.Name, m.State)] = m
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.byKey) }

func (t *Table) ResolveMunicipality(ctx context.Context, city, state string) (string, error) {
	if m, ok := t.byKey[Key(city, state)]; ok {
		return m.Code, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMunicipalityNotFound, city, state)
}
