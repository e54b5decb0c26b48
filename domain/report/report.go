// Package report defines the validation report shared by the structural
// rule pass, the XSD pass and the signature verifier.
package report

import (
	"fmt"
	"sort"
)

// Report is informational output. Errors block transport, warnings never do.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Details  *Details `json:"details,omitempty"`
}

// Details is the optional structured breakdown of a report.
type Details struct {
	// Coverage is the percentage of checked fields that were present and well formed.
	Coverage float64         `json:"coverage"`
	Sections []SectionResult `json:"sections,omitempty"`
}

// SectionResult counts findings for one section (provider, customer, ...).
type SectionResult struct {
	Name     string `json:"name"`
	Checked  int    `json:"checked"`
	Passed   int    `json:"passed"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

// New returns an empty, valid report.
func New() Report {
	return Report{Valid: true, Errors: []string{}, Warnings: []string{}}
}

// Builder accumulates findings for one section.
type Builder struct {
	section SectionResult
	errors  []string
	warns   []string
}

// NewBuilder starts a section.
func NewBuilder(section string) *Builder {
	return &Builder{section: SectionResult{Name: section}}
}

// Check counts a checked field and records msg as an error when ok is false.
func (b *Builder) Check(ok bool, format string, args ...any) bool {
	b.section.Checked++
	if ok {
		b.section.Passed++
		return true
	}
	b.Errorf(format, args...)
	return false
}

// Errorf records an error.
func (b *Builder) Errorf(format string, args ...any) {
	b.section.Errors++
	b.errors = append(b.errors, b.prefix()+fmt.Sprintf(format, args...))
}

// Warnf records a warning.
func (b *Builder) Warnf(format string, args ...any) {
	b.section.Warnings++
	b.warns = append(b.warns, b.prefix()+fmt.Sprintf(format, args...))
}

func (b *Builder) prefix() string {
	if b.section.Name == "" {
		return ""
	}
	return b.section.Name + ": "
}

// Report closes the section.
func (b *Builder) Report() Report {
	r := New()
	r.Errors = append(r.Errors, b.errors...)
	r.Warnings = append(r.Warnings, b.warns...)
	r.Valid = len(r.Errors) == 0
	section := b.section
	r.Details = &Details{Coverage: coverage(section.Passed, section.Checked), Sections: []SectionResult{section}}
	return r
}

// Merge combines partial reports preserving the order of their findings.
func Merge(reports ...Report) Report {
	out := New()
	var checked, passed int
	withDetails := false
	for _, r := range reports {
		out.Errors = append(out.Errors, r.Errors...)
		out.Warnings = append(out.Warnings, r.Warnings...)
		if r.Details == nil {
			continue
		}
		withDetails = true
		for _, s := range r.Details.Sections {
			out.addSection(s)
			checked += s.Checked
			passed += s.Passed
		}
	}
	out.Valid = len(out.Errors) == 0
	if withDetails {
		if out.Details == nil {
			out.Details = &Details{}
		}
		out.Details.Coverage = coverage(passed, checked)
	}
	return out
}

func (r *Report) addSection(s SectionResult) {
	if r.Details == nil {
		r.Details = &Details{}
	}
	for i := range r.Details.Sections {
		if r.Details.Sections[i].Name == s.Name {
			cur := &r.Details.Sections[i]
			cur.Checked += s.Checked
			cur.Passed += s.Passed
			cur.Errors += s.Errors
			cur.Warnings += s.Warnings
			return
		}
	}
	r.Details.Sections = append(r.Details.Sections, s)
}

// Section returns the named section breakdown, if present.
func (r Report) Section(name string) (SectionResult, bool) {
	if r.Details == nil {
		return SectionResult{}, false
	}
	for _, s := range r.Details.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}

// SectionNames lists the sections in alphabetical order.
func (r Report) SectionNames() []string {
	if r.Details == nil {
		return nil
	}
	names := make([]string, 0, len(r.Details.Sections))
	for _, s := range r.Details.Sections {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Error and Warning build single-finding reports.
func Error(format string, args ...any) Report {
	r := New()
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	return r
}

func Warning(format string, args ...any) Report {
	r := New()
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	return r
}

func coverage(passed, checked int) float64 {
	if checked == 0 {
		return 100
	}
	return float64(passed) * 100 / float64(checked)
}
