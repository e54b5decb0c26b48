package xmldps

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/lb-conn/nfse-dps/domain/dps"
	"github.com/lb-conn/nfse-dps/domain/errs"
	"github.com/lb-conn/nfse-dps/infrastructure/xmltree"
)

// Decoded é o resultado da leitura de um XML de DPS.
type Decoded struct {
	Document *dps.Document
	// RawID é o atributo Id como recebido, válido ou não.
	RawID   string
	Version string
	Signed  bool
	// Issues lista campos presentes mas ilegíveis (número malformado, data inválida).
	Issues []string
}

// Parse reconstrói o documento tipado a partir do XML, assinado ou não.
// Campos ausentes ficam com valor zero para que as regras estruturais os
// apontem; apenas XML malformado ou sem infDPS é erro.
func Parse(data []byte) (*Decoded, error) {
	tree, err := xmltree.Parse(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInput, "xmldps.parse", err)
	}
	root := tree.Root()
	inf := xmltree.Child(root, "infDPS")
	if inf == nil {
		return nil, errs.Input("xmldps.parse", "infDPS", "element infDPS", root.Tag)
	}

	p := &reader{}
	out := &Decoded{Version: root.SelectAttrValue("versao", ""), Document: &dps.Document{}}
	if attr := inf.SelectAttr("Id"); attr != nil {
		out.RawID = attr.Value
		if id, err := dps.ParseID(attr.Value); err == nil {
			out.Document.ID = id
		}
	}
	for _, c := range root.ChildElements() {
		if xmltree.IsSignature(c) {
			out.Signed = true
		}
	}

	doc := out.Document
	doc.Environment = dps.Environment(p.int(inf, "tpAmb"))
	doc.IssuedAt = p.time(inf, "dhEmi", timestampLayout)
	doc.AppVersion = xmltree.Text(inf, "verAplic")
	doc.Series = p.int(inf, "serie")
	doc.Number = p.int64(inf, "nDPS")
	doc.CompetenceDate = p.time(inf, "dCompet", dateLayout)
	doc.EmitterType = dps.EmitterType(p.int(inf, "tpEmit"))
	doc.EmitterMunicipality = xmltree.Text(inf, "cLocEmi")

	if prest := xmltree.Child(inf, "prest"); prest != nil {
		doc.Provider = p.provider(prest)
	}
	if toma := xmltree.Child(inf, "toma"); toma != nil {
		doc.Customer = p.customer(toma)
	}
	if serv := xmltree.Child(inf, "serv"); serv != nil {
		doc.Service = p.service(serv)
	}
	if valores := xmltree.Child(inf, "valores"); valores != nil {
		p.values(valores, doc)
	}

	out.Issues = p.issues
	return out, nil
}

type reader struct {
	issues []string
}

func (p *reader) fail(field, value string, err error) {
	p.issues = append(p.issues, fmt.Sprintf("%s: cannot read %q: %v", field, value, err))
}

func (p *reader) int(el *etree.Element, path ...string) int {
	raw := xmltree.Text(el, path...)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(path[len(path)-1], raw, err)
	}
	return n
}

func (p *reader) int64(el *etree.Element, path ...string) int64 {
	raw := xmltree.Text(el, path...)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(path[len(path)-1], raw, err)
	}
	return n
}

func (p *reader) money(el *etree.Element, path ...string) decimal.Decimal {
	raw := xmltree.Text(el, path...)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(path[len(path)-1], raw, err)
		return decimal.Zero
	}
	return d
}

func (p *reader) time(el *etree.Element, tag, layout string) time.Time {
	raw := xmltree.Text(el, tag)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		p.fail(tag, raw, err)
	}
	return t
}

func (p *reader) provider(el *etree.Element) dps.Provider {
	prov := dps.Provider{
		MunicipalRegistration: xmltree.Text(el, "IM"),
		Name:                  xmltree.Text(el, "xNome"),
		Phone:                 xmltree.Text(el, "fone"),
		Email:                 xmltree.Text(el, "email"),
	}
	if id, ok := p.identity(el).(dps.FederalID); ok {
		prov.TaxID = id
	}
	if end := xmltree.Child(el, "end"); end != nil {
		prov.Address = readAddress(end)
	}
	if reg := xmltree.Child(el, "regTrib"); reg != nil {
		prov.Regime = dps.TaxRegime{
			SimplesNacional: dps.SimplesNacional(p.int(reg, "opSimpNac")),
			SNRegime:        p.int(reg, "regApTribSN"),
			SpecialRegime:   p.int(reg, "regEspTrib"),
		}
	}
	return prov
}

func (p *reader) customer(el *etree.Element) *dps.Customer {
	c := &dps.Customer{
		Identity:              p.identity(el),
		MunicipalRegistration: xmltree.Text(el, "IM"),
		Name:                  xmltree.Text(el, "xNome"),
		Phone:                 xmltree.Text(el, "fone"),
		Email:                 xmltree.Text(el, "email"),
	}
	if end := xmltree.Child(el, "end"); end != nil {
		c.Address = readAddress(end)
	}
	return c
}

func (p *reader) identity(el *etree.Element) dps.Identity {
	switch {
	case xmltree.Child(el, "CNPJ") != nil:
		return dps.CNPJ(xmltree.Text(el, "CNPJ"))
	case xmltree.Child(el, "CPF") != nil:
		return dps.CPF(xmltree.Text(el, "CPF"))
	case xmltree.Child(el, "NIF") != nil:
		return dps.ForeignNIF(xmltree.Text(el, "NIF"))
	case xmltree.Child(el, "cNaoNIF") != nil:
		return dps.NoNIF(p.int(el, "cNaoNIF"))
	}
	return nil
}

func readAddress(end *etree.Element) *dps.Address {
	a := &dps.Address{
		Street:     xmltree.Text(end, "xLgr"),
		Number:     xmltree.Text(end, "nro"),
		Complement: xmltree.Text(end, "xCpl"),
		District:   xmltree.Text(end, "xBairro"),
	}
	if nac := xmltree.Child(end, "endNac"); nac != nil {
		loc := dps.NationalLocation{
			MunicipalityCode: xmltree.Text(nac, "cMun"),
			PostalCode:       xmltree.Text(nac, "CEP"),
		}
		loc.State, _ = dps.StateOf(loc.MunicipalityCode)
		a.Location = loc
	} else if ext := xmltree.Child(end, "endExt"); ext != nil {
		a.Location = dps.ForeignLocation{
			CountryCode: xmltree.Text(ext, "cPais"),
			PostalCode:  xmltree.Text(ext, "cEndPost"),
			City:        xmltree.Text(ext, "xCidade"),
			Region:      xmltree.Text(ext, "xEstProvReg"),
		}
	}
	return a
}

func (p *reader) service(el *etree.Element) dps.Service {
	s := dps.Service{
		NationalTaxCode:  xmltree.Text(el, "cServ", "cTribNac"),
		MunicipalTaxCode: xmltree.Text(el, "cServ", "cTribMun"),
		Description:      xmltree.Text(el, "cServ", "xDescServ"),
		NBSCode:          xmltree.Text(el, "cServ", "cNBS"),
	}
	if country := xmltree.Text(el, "locPrest", "cPaisPrestacao"); country != "" {
		s.CountryCode = country
	} else {
		s.MunicipalityCode = xmltree.Text(el, "locPrest", "cLocPrestacao")
		s.CountryCode = "BR"
	}
	return s
}

func (p *reader) values(el *etree.Element, doc *dps.Document) {
	v := &doc.Values
	v.Received = p.money(el, "vServPrest", "vReceb")
	v.Gross = p.money(el, "vServPrest", "vServ")
	v.DiscountUnconditioned = p.money(el, "vDescCondIncond", "vDescIncond")
	v.DiscountConditioned = p.money(el, "vDescCondIncond", "vDescCond")
	v.Deduction = p.money(el, "vDedRed", "vDR")

	mun := xmltree.Path(el, "trib", "tribMun")
	if mun != nil {
		doc.Taxation = dps.Taxation{
			ISSQN:         dps.ISSQNTaxation(p.int(mun, "tribISSQN")),
			Retention:     dps.ISSRetention(p.int(mun, "tpRetISSQN")),
			ResultCountry: xmltree.Text(mun, "cPaisResult"),
			ImmunityType:  p.int(mun, "tpImunidade"),
		}
		v.ISSRate = p.money(mun, "pAliq")
	}

	if fed := xmltree.Path(el, "trib", "tribFed"); fed != nil {
		v.Retentions.INSS = p.money(fed, "vRetCP")
		v.Retentions.IR = p.money(fed, "vRetIRRF")
		v.Retentions.CSLL = p.money(fed, "vRetCSLL")
		if pc := xmltree.Child(fed, "piscofins"); pc != nil {
			v.Retentions.PISCOFINS = &dps.PISCOFINS{
				CST:          xmltree.Text(pc, "CST"),
				Base:         p.money(pc, "vBCPisCofins"),
				RatePIS:      p.money(pc, "pAliqPis"),
				RateCOFINS:   p.money(pc, "pAliqCofins"),
				AmountPIS:    p.money(pc, "vPis"),
				AmountCOFINS: p.money(pc, "vCofins"),
				Retained:     xmltree.Text(pc, "tpRetPisCofins") == "1",
			}
		}
	}

	// O leiaute não transporta base, ISS e líquido; são recalculados.
	v.Base, v.ISSAmount, v.Net = v.Totals()
}
