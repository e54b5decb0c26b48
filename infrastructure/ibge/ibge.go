// Package ibge resolves city names to 7-digit IBGE municipality codes.
package ibge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/errs"
)

// ErrMunicipalityNotFound means no resolver knows the city.
var ErrMunicipalityNotFound = fmt.Errorf("%w: municipality not found", errs.ErrInput)

// Municipality is one entry of the IBGE territorial division.
type Municipality struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	State string `yaml:"state" json:"state"`
}

// Key normalizes a city/state pair: accents removed, upper case, single
// spaces, apostrophes and hyphens as spaces.
func Key(city, state string) string {
	return Fold(city) + "/" + strings.ToUpper(strings.TrimSpace(state))
}

// Fold removes diacritics and case so "São Paulo" matches "SAO PAULO".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("'", " ", "’", " ", "-", " ").Replace(out)
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

// Chain asks each resolver in order and returns the first code found.
type Chain []ports.MunicipalityResolver

func (c Chain) ResolveMunicipality(ctx context.Context, city, state string) (string, error) {
	var failures []error
	for _, r := range c {
		code, err := r.ResolveMunicipality(ctx, city, state)
		if err == nil && code != "" {
			return code, nil
		}
		if err != nil && !errors.Is(err, ErrMunicipalityNotFound) {
			failures = append(failures, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if len(failures) > 0 {
		return "", fmt.Errorf("%w: %s/%s: %w", ErrMunicipalityNotFound, city, state, errors.Join(failures...))
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMunicipalityNotFound, city, state)
}

var _ ports.MunicipalityResolver = Chain(nil)
