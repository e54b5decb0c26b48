package xmltree

import (
	"strings"
	"testing"
)

func TestNormalize_IsIdempotent(t *testing.T) {
	in := `<?xml version="1.0" encoding="UTF-8"?>
<!-- header -->
<root xmlns="urn:a">
  <a>one &amp; two</a>
  <!-- note -->
  <b x="1"/>
</root>`

	doc, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	Normalize(doc)
	first, err := Write(doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	want := `<?xml version="1.0" encoding="UTF-8"?><root xmlns="urn:a"><a>one &amp; two</a><b x="1"/></root>`
	if string(first) != want {
		t.Fatalf("unexpected output:\n%s", first)
	}

	again, err := Parse(first)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	Normalize(again)
	second, _ := Write(again)
	if string(second) != string(first) {
		t.Errorf("normalization is not idempotent:\n%s\n%s", first, second)
	}
}

func TestDetach_CarriesInheritedNamespaces(t *testing.T) {
	doc, err := Parse([]byte(`<DPS xmlns="urn:nfse" xmlns:x="urn:x"><inf Id="A"><x:v>1</x:v></inf><Signature xmlns="urn:dsig"><SignedInfo/></Signature></DPS>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	inf := FindByID(doc.Root(), "A")
	if inf == nil {
		t.Fatal("expected element with Id A")
	}
	cp := Detach(inf)
	if a := cp.SelectAttr("xmlns"); a == nil || a.Value != "urn:nfse" {
		t.Errorf("expected default namespace urn:nfse, got %v", a)
	}
	if a := cp.SelectAttr("xmlns:x"); a == nil || a.Value != "urn:x" {
		t.Errorf("expected prefixed namespace urn:x, got %v", a)
	}

	si := Path(doc.Root(), "Signature", "SignedInfo")
	if si == nil {
		t.Fatal("expected SignedInfo")
	}
	if a := Detach(si).SelectAttr("xmlns"); a == nil || a.Value != "urn:dsig" {
		t.Errorf("expected nearest default namespace urn:dsig, got %v", a)
	}
	if inf.SelectAttr("xmlns") != nil {
		t.Error("detach must not modify the original element")
	}
}

func TestRemoveSignatureElements(t *testing.T) {
	doc, _ := Parse([]byte(`<r><a/><ds:Signature xmlns:ds="urn:d"/><b><Signature/></b></r>`))
	RemoveSignatureElements(doc.Root())
	out, _ := Write(doc)
	if strings.Contains(string(out), "Signature") {
		t.Errorf("expected signatures removed, got %s", out)
	}
}

func TestFindIDOfLength(t *testing.T) {
	doc, _ := Parse([]byte(`<r Id="short"><c Id="0123456789"/></r>`))
	el := FindIDOfLength(doc.Root(), 10)
	if el == nil || el.Tag != "c" {
		t.Fatalf("expected element c, got %v", el)
	}
	if FindIDOfLength(doc.Root(), 45) != nil {
		t.Error("expected no match")
	}
}

func TestWellFormed(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"ok", `<?xml version="1.0"?><a><b>x</b></a>`, false},
		{"empty", "   ", true},
		{"unclosed", `<a><b></a>`, true},
		{"two roots", `<a/><b/>`, true},
		{"text outside", `<a/>junk`, true},
		{"bad entity", `<a>&nbsp;</a>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WellFormed([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Errorf("WellFormed(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}
