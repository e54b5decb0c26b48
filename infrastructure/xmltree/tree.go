// Package xmltree reúne as operações sobre árvores etree usadas pelo
// serializador, pelo assinador, pelo verificador e pelo codec.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Declaration é a declaração XML emitida em todo documento.
const Declaration = `version="1.0" encoding="UTF-8"`

// NewDocument cria um documento com a declaração XML padrão.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", Declaration)
	return doc
}

// Parse lê um documento e exige um elemento raiz. O etree lê tokens crus e não
// confere o fechamento das tags, por isso a boa formação é verificada antes.
func Parse(data []byte) (*etree.Document, error) {
	if err := WellFormed(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, errors.New("empty XML document")
	}
	return doc, nil
}

// Write serializa o documento sem indentação. Todos os componentes usam a
// mesma configuração, o que torna parse+write idempotente sobre a saída.
func Write(doc *etree.Document) ([]byte, error) {
	doc.WriteSettings = etree.WriteSettings{}
	return doc.WriteToBytes()
}

// LocalName retorna o nome da tag sem prefixo.
func LocalName(el *etree.Element) string {
	if i := strings.IndexByte(el.Tag, ':'); i >= 0 {
		return el.Tag[i+1:]
	}
	return el.Tag
}

// Child retorna o primeiro filho com o nome local informado.
func Child(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if LocalName(c) == local || c.Tag == local {
			return c
		}
	}
	return nil
}

// Path desce pelos filhos com os nomes locais informados.
func Path(el *etree.Element, locals ...string) *etree.Element {
	for _, l := range locals {
		el = Child(el, l)
		if el == nil {
			return nil
		}
	}
	return el
}

// Text retorna o texto do filho informado, ou "" se ausente.
func Text(el *etree.Element, locals ...string) string {
	c := Path(el, locals...)
	if c == nil {
		return ""
	}
	return c.Text()
}

// FindByID busca, em profundidade, o elemento cujo atributo Id vale id.
func FindByID(el *etree.Element, id string) *etree.Element {
	if attr := el.SelectAttr("Id"); attr != nil && attr.Value == id {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// FindIDOfLength busca o primeiro elemento com atributo Id do tamanho dado.
func FindIDOfLength(el *etree.Element, n int) *etree.Element {
	if attr := el.SelectAttr("Id"); attr != nil && len(attr.Value) == n {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := FindIDOfLength(c, n); found != nil {
			return found
		}
	}
	return nil
}

// IsSignature informa se o elemento é um <Signature>, com ou sem prefixo.
func IsSignature(el *etree.Element) bool {
	return strings.EqualFold(el.Tag, "Signature") || strings.HasSuffix(el.Tag, ":Signature")
}

// RemoveSignatureElements elimina quaisquer elementos <Signature> (transform enveloped).
func RemoveSignatureElements(el *etree.Element) {
	var newChildren []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			if IsSignature(c) {
				continue
			}
			RemoveSignatureElements(c)
			newChildren = append(newChildren, c)
		default:
			newChildren = append(newChildren, c)
		}
	}
	el.Child = newChildren
}

// RemoveWhitespaceNodes remove nós de texto que contêm apenas espaços em branco.
func RemoveWhitespaceNodes(el *etree.Element) {
	var newChildren []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			RemoveWhitespaceNodes(c)
			newChildren = append(newChildren, c)
		case *etree.CharData:
			if strings.TrimSpace(c.Data) != "" {
				newChildren = append(newChildren, c)
			}
		default:
			newChildren = append(newChildren, c)
		}
	}
	el.Child = newChildren
}

// RemoveComments remove comentários do elemento e descendentes.
func RemoveComments(el *etree.Element) {
	var newChildren []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Comment:
			continue
		case *etree.Element:
			RemoveComments(c)
			newChildren = append(newChildren, c)
		default:
			newChildren = append(newChildren, c)
		}
	}
	el.Child = newChildren
}

// Normalize aplica a limpeza entre tags em todo o documento: comentários e
// nós só de espaço saem, inclusive os que ficam fora da raiz.
func Normalize(doc *etree.Document) {
	var kept []etree.Token
	for _, child := range doc.Child {
		switch c := child.(type) {
		case *etree.Comment:
			continue
		case *etree.CharData:
			if strings.TrimSpace(c.Data) == "" {
				continue
			}
			kept = append(kept, c)
		default:
			kept = append(kept, c)
		}
	}
	doc.Child = kept
	if root := doc.Root(); root != nil {
		RemoveComments(root)
		RemoveWhitespaceNodes(root)
	}
}

// Detach copia o elemento e declara nele os namespaces herdados dos
// ancestrais, para que a canonicalização do subconjunto veja o mesmo
// contexto de namespaces que teria dentro do documento.
func Detach(el *etree.Element) *etree.Element {
	cp := el.Copy()
	declared := map[string]bool{}
	for _, a := range cp.Attr {
		if key, ok := nsKey(a); ok {
			declared[key] = true
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			key, ok := nsKey(a)
			if !ok || declared[key] {
				continue
			}
			declared[key] = true
			cp.CreateAttr(a.FullKey(), a.Value)
		}
	}
	return cp
}

func nsKey(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "" && a.Key == "xmlns":
		return "", true
	case a.Space == "xmlns":
		return a.Key, true
	}
	return "", false
}

// WellFormed confere a boa formação estrita do documento e exige um único
// elemento raiz. O erro indica o deslocamento em bytes da falha.
func WellFormed(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return errors.New("empty document")
	}

	dec := xml.NewDecoder(bytes.NewReader(b))
	dec.Strict = true

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("offset %d: %w", dec.InputOffset(), err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fmt.Errorf("offset %d: multiple root elements (%s)", dec.InputOffset(), t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("offset %d: text outside root element", dec.InputOffset())
			}
		}
	}
	if roots == 0 {
		return errors.New("no root element")
	}
	return nil
}
