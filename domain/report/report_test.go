package report

import "testing"

func TestMerge_PreservesOrderAndValidity(t *testing.T) {
	a := NewBuilder("provider")
	a.Check(true, "name present")
	a.Check(false, "missing %s", "cnpj")
	a.Warnf("phone looks short")

	b := NewBuilder("customer")
	b.Check(true, "ok")
	b.Check(true, "ok")

	merged := Merge(a.Report(), b.Report(), Warning("global warning"))

	if merged.Valid {
		t.Fatal("expected merged report to be invalid")
	}
	if len(merged.Errors) != 1 || merged.Errors[0] != "provider: missing cnpj" {
		t.Errorf("unexpected errors: %v", merged.Errors)
	}
	wantWarnings := []string{"provider: phone looks short", "global warning"}
	if len(merged.Warnings) != len(wantWarnings) {
		t.Fatalf("unexpected warnings: %v", merged.Warnings)
	}
	for i, w := range wantWarnings {
		if merged.Warnings[i] != w {
			t.Errorf("warning %d: expected %q, got %q", i, w, merged.Warnings[i])
		}
	}
	if merged.Details == nil {
		t.Fatal("expected details")
	}
	if merged.Details.Coverage != 75 {
		t.Errorf("expected coverage 75, got %v", merged.Details.Coverage)
	}
	if s, ok := merged.Section("customer"); !ok || s.Checked != 2 || s.Passed != 2 {
		t.Errorf("unexpected customer section: %+v", s)
	}
}

func TestMerge_SameSectionAccumulates(t *testing.T) {
	a := NewBuilder("values")
	a.Check(true, "")
	b := NewBuilder("values")
	b.Check(false, "bad")

	merged := Merge(a.Report(), b.Report())
	s, ok := merged.Section("values")
	if !ok {
		t.Fatal("expected values section")
	}
	if s.Checked != 2 || s.Passed != 1 || s.Errors != 1 {
		t.Errorf("unexpected section: %+v", s)
	}
	if names := merged.SectionNames(); len(names) != 1 {
		t.Errorf("expected one section, got %v", names)
	}
}

func TestWarningsNeverInvalidate(t *testing.T) {
	r := Merge(Warning("a"), Warning("b"))
	if !r.Valid {
		t.Error("warnings must not invalidate a report")
	}
	if r.Details != nil {
		t.Error("expected no details when no section was reported")
	}
}
