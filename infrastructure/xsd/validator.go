// Package xsd validates DPS documents against the official XML schemas using
// libxml2. Schema files are not bundled; the directory comes from configuration.
package xsd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	xsdvalidate "github.com/terminalstatic/go-xsd-validate"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// DefaultSchema is the entry-point file of the national layout package.
const DefaultSchema = "DPS_v1.00.xsd"

// ErrSchemaNotFound is returned when the schema file cannot be read.
var ErrSchemaNotFound = fmt.Errorf("%w: xsd schema not found", errs.ErrConfig)

var (
	initOnce sync.Once
	initErr  error
)

// Validator holds one compiled schema. It is safe for concurrent use.
type Validator struct {
	handler *xsdvalidate.XsdHandler
	path    string
	log     *slog.Logger
}

// New compiles dir/schema. An empty schema selects DefaultSchema.
func New(dir, schema string, log *slog.Logger) (*Validator, error) {
	if log == nil {
		log = slog.Default()
	}
	if schema == "" {
		schema = DefaultSchema
	}
	path := filepath.Join(dir, schema)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaNotFound, path, err)
	}

	initOnce.Do(func() { initErr = xsdvalidate.Init() })
	if initErr != nil {
		return nil, errs.Wrap(errs.ErrConfig, "xsd init", initErr)
	}

	handler, err := xsdvalidate.NewXsdHandlerUrl(path, xsdvalidate.ParsErrDefault)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, "xsd compile "+schema, err)
	}
	log.Info("xsd schema loaded", slog.String("path", path))
	return &Validator{handler: handler, path: path, log: log}, nil
}

// Validate runs the schema against xmlData. Schema violations and malformed
// XML are report findings; the error is reserved for libxml2 failures.
func (v *Validator) Validate(xmlData []byte) (report.Report, error) {
	b := report.NewBuilder("xsd")
	err := v.handler.ValidateMem(xmlData, xsdvalidate.ValidErrDefault)

	var verr xsdvalidate.ValidationError
	var perr xsdvalidate.XmlParserError
	switch {
	case err == nil:
		b.Check(true, "")
	case errors.As(err, &verr):
		classify(b, verr)
	case errors.As(err, &perr):
		b.Check(false, "xml: %s", strings.TrimSpace(perr.Error()))
	default:
		return report.Report{}, errs.Wrap(errs.ErrValidation, "xsd validate", err)
	}

	r := b.Report()
	v.log.Debug("xsd validation finished",
		slog.Bool("valid", r.Valid),
		slog.Int("errors", len(r.Errors)))
	return r, nil
}

// Close releases the compiled schema.
func (v *Validator) Close() {
	if v.handler != nil {
		v.handler.Free()
		v.handler = nil
	}
}

// Níveis do libxml2 (xmlErrorLevel).
const (
	levelWarning = 1
	levelFatal   = 3
)

// classify keeps libxml2's severity: warnings never invalidate the report.
func classify(b *report.Builder, verr xsdvalidate.ValidationError) {
	for _, se := range verr.Errors {
		if se.Level == levelWarning {
			b.Warnf("%s", describe(se))
			continue
		}
		b.Check(false, "%s", describe(se))
	}
}

func describe(se xsdvalidate.StructError) string {
	msg := strings.TrimSpace(se.Message)
	level := "error"
	switch se.Level {
	case levelWarning:
		level = "warning"
	case levelFatal:
		level = "fatal"
	}
	if se.NodeName != "" {
		return fmt.Sprintf("%s: line %d, element %s: %s", level, se.Line, se.NodeName, msg)
	}
	return fmt.Sprintf("%s: line %d: %s", level, se.Line, msg)
}

var _ ports.SchemaValidator = (*Validator)(nil)
