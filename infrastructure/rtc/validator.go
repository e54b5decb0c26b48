// Package rtc implements the structural and business-rule pass over a DPS.
// Each rule checks one section and returns a partial report; the Validator
// runs the registered rules and merges the results in order.
package rtc

import (
	"log/slog"

	"github.com/lb-conn/nfse-dps/application/ports"
	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/report"
	"github.com/lb-conn/nfse-dps/infrastructure/xmldps"
)

// Rule checks one aspect of a document.
type Rule func(doc *dps.Document) report.Report

// DefaultRules is the rule set for layout 1.00. The identifier rule is not
// part of it: Validator runs it first against the raw Id.
func DefaultRules() []Rule {
	return []Rule{
		CheckHeader,
		CheckProvider,
		CheckCustomer,
		CheckService,
		CheckValues,
		CheckTaxation,
	}
}

// Validator runs the identifier rule plus the registered rules.
type Validator struct {
	rules []Rule
	log   *slog.Logger
}

var _ ports.RuleValidator = (*Validator)(nil)

// New returns a Validator with DefaultRules followed by extra.
func New(log *slog.Logger, extra ...Rule) *Validator {
	if log == nil {
		log = slog.Default()
	}
	rules := append(DefaultRules(), extra...)
	return &Validator{rules: rules, log: log}
}

// Validate checks a typed document.
func (v *Validator) Validate(doc *dps.Document) report.Report {
	if doc == nil {
		return report.Error("document: nil document")
	}
	return v.run(doc, doc.ID.String(), nil)
}

// ValidateXML reads the document back from XML and runs the same rules. Unreadable
// values found while parsing are errors of the "xml" section.
func (v *Validator) ValidateXML(data []byte) report.Report {
	decoded, err := xmldps.Parse(data)
	if err != nil {
		return report.Error("xml: %v", err)
	}
	b := report.NewBuilder("xml")
	b.Check(decoded.Version == xmldps.LayoutVersion, "layout version must be %s, got %q", xmldps.LayoutVersion, decoded.Version)
	for _, issue := range decoded.Issues {
		b.Errorf("%s", issue)
	}
	return v.run(decoded.Document, decoded.RawID, []report.Report{b.Report()})
}

func (v *Validator) run(doc *dps.Document, rawID string, partial []report.Report) report.Report {
	partial = append(partial, CheckIdentifier(rawID, doc))
	for _, rule := range v.rules {
		partial = append(partial, rule(doc))
	}
	r := report.Merge(partial...)
	v.log.Debug("rtc validation finished",
		"dps_id", rawID,
		"valid", r.Valid,
		"errors", len(r.Errors),
		"warnings", len(r.Warnings))
	return r
}
