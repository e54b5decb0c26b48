package ports

import (
	"context"

	"github.com/lb-conn/nfse-dps/domain/credential"
)

// SequenceReservoir hands out DPS numbers. ReserveNext must be atomic across
// processes: two callers never receive the same number for a series.
type SequenceReservoir interface {
	ReserveNext(ctx context.Context, series int) (int64, error)
}

// MunicipalityResolver maps a city name and state to its 7-digit IBGE code.
type MunicipalityResolver interface {
	ResolveMunicipality(ctx context.Context, city, state string) (string, error)
}

// CertificateStore returns the signing identity registered under id.
type CertificateStore interface {
	Identity(ctx context.Context, id string) (*credential.Identity, error)
}
