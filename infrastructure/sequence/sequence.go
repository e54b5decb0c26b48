// Package sequence reserves DPS numbers. Every implementation guarantees that
// a number is handed out at most once per series, even across processes
// sharing the same store.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/errs"
)

// ErrSequenceExhausted is returned when the series reached dps.MaxNumber.
var ErrSequenceExhausted = errors.New("dps sequence exhausted")

// Reservoir is a SequenceReservoir that can also be seeded from an external
// numbering.
type Reservoir interface {
	ports.SequenceReservoir
	Seed(ctx context.Context, series int, last int64) error
	Last(ctx context.Context, series int) (int64, error)
}

func checkSeries(series int) error {
	if series < 0 || series > dps.MaxSeries {
		return errs.Input("sequence", "series", fmt.Sprintf("0..%d", dps.MaxSeries), fmt.Sprint(series))
	}
	return nil
}

func checkSeed(series int, last int64) error {
	if err := checkSeries(series); err != nil {
		return err
	}
	if last < 0 || last > dps.MaxNumber {
		return errs.Input("sequence", "last", fmt.Sprintf("0..%d", int64(dps.MaxNumber)), fmt.Sprint(last))
	}
	return nil
}

// Memory keeps counters in process memory. It is meant for tests and single
// process tools; numbers are lost on restart.
type Memory struct {
	mu   sync.Mutex
	last map[int]int64
}

func NewMemory() *Memory {
	return &Memory{last: make(map[int]int64)}
}

func (m *Memory) ReserveNext(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last[series] >= dps.MaxNumber {
		return 0, fmt.Errorf("series %d: %w", series, ErrSequenceExhausted)
	}
	m.last[series]++
	return m.last[series], nil
}

// Seed raises the counter of series to last. Lower values are ignored.
func (m *Memory) Seed(ctx context.Context, series int, last int64) error {
	if err := checkSeed(series, last); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if last > m.last[series] {
		m.last[series] = last
	}
	return nil
}

func (m *Memory) Last(ctx context.Context, series int) (int64, error) {
	if err := checkSeries(series); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[series], nil
}

var _ Reservoir = (*Memory)(nil)
