// Package usecases wires the DPS pipeline stages behind a single Application.
package usecases

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/domain/report"
)

// Dependencies are the ports used by the Application. Signer and Schema may
// be nil for verification-only deployments; Emit requires both, while
// Validate and Inspect skip the XSD pass without a schema.
type Dependencies struct {
	Mapper     ports.Mapper
	Serializer ports.Serializer
	Rules      ports.RuleValidator
	Schema     ports.SchemaValidator
	Signer     ports.Signer
	Verifier   ports.Verifier
	Codec      ports.Codec
	Sequence   ports.SequenceReservoir
	Series     int
}

// Application holds the dependencies for DPS operations.
type Application struct {
	deps Dependencies
	log  *slog.Logger
}

func NewApplication(deps Dependencies, log *slog.Logger) *Application {
	if log == nil {
		log = slog.Default()
	}
	if deps.Series <= 0 {
		deps.Series = 1
	}
	return &Application{deps: deps, log: log}
}

// ValidationFailedError carries the blocking report of a pipeline stage.
type ValidationFailedError struct {
	Stage  string
	Report report.Report
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Stage, strings.Join(e.Report.Errors, "; "))
}

func (e *ValidationFailedError) Unwrap() error { return errs.ErrValidation }

// Sign envelopes a signature into xmlData.
func (app *Application) Sign(xmlData []byte) ([]byte, error) {
	if app.deps.Signer == nil {
		return nil, notConfigured("signer")
	}
	return app.deps.Signer.Sign(xmlData)
}

// Verify checks the signature of xmlData.
func (app *Application) Verify(xmlData []byte) error {
	if app.deps.Verifier == nil {
		return notConfigured("verifier")
	}
	return app.deps.Verifier.Verify(xmlData)
}

// Inspect runs the mirror path on a received or stored document: signature
// report, structural rules and, when configured, the schema.
func (app *Application) Inspect(xmlData []byte) (report.Report, error) {
	if app.deps.Verifier == nil {
		return report.Report{}, notConfigured("verifier")
	}
	content, err := app.Validate(xmlData)
	if err != nil {
		return report.Report{}, err
	}
	return report.Merge(app.deps.Verifier.Report(xmlData), content), nil
}

// CertificateInfo returns the certificate embedded in a signed document.
func (app *Application) CertificateInfo(xmlData []byte) (*credential.Info, error) {
	if app.deps.Verifier == nil {
		return nil, notConfigured("verifier")
	}
	return app.deps.Verifier.CertificateInfo(xmlData)
}

// Validate runs the structural pass and, when configured, the XSD pass. The
// error is reserved for validators that could not run.
func (app *Application) Validate(xmlData []byte) (report.Report, error) {
	if app.deps.Rules == nil {
		return report.Report{}, notConfigured("rule validator")
	}
	r := app.deps.Rules.ValidateXML(xmlData)
	if app.deps.Schema == nil {
		return r, nil
	}
	schema, err := app.deps.Schema.Validate(xmlData)
	if err != nil {
		return report.Report{}, fmt.Errorf("schema validation: %w", err)
	}
	return report.Merge(r, schema), nil
}

func (app *Application) Compress(xmlData []byte) (string, error) {
	if app.deps.Codec == nil {
		return "", notConfigured("codec")
	}
	return app.deps.Codec.Compress(xmlData)
}

func (app *Application) Decompress(encoded string) ([]byte, error) {
	if app.deps.Codec == nil {
		return nil, notConfigured("codec")
	}
	return app.deps.Codec.Decompress(encoded)
}

func notConfigured(what string) error {
	return errs.Wrap(errs.ErrConfig, "application", fmt.Errorf("%s not configured", what))
}
