// Package xmldps renderiza um dps.Document no XML do layout nacional e faz o
// caminho inverso para documentos recebidos ou armazenados.
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

const (
	// Namespace do leiaute nacional da NFS-e.
	Namespace = "http://www.sped.fazenda.gov.br/nfse"
	// LayoutVersion é o valor do atributo versao.
	LayoutVersion = "1.00"

	timestampLayout = "2006-01-02T15:04:05-07:00"
	dateLayout      = "2006-01-02"
)

// Serializer gera o XML da DPS com ordem de elementos fixa.
type Serializer struct {
	namespace string
	version   string
}

// NewSerializer usa os valores padrão quando namespace ou versão são vazios.
func NewSerializer(namespace, version string) *Serializer {
	if namespace == "" {
		namespace = Namespace
	}
	if version == "" {
		version = LayoutVersion
	}
	return &Serializer{namespace: namespace, version: version}
}

// Serialize renderiza o documento e confere a boa formação relendo a saída.
// Falha aqui é defeito do mapeador ou do serializador, nunca erro do usuário.
func (s *Serializer) Serialize(doc *dps.Document) ([]byte, error) {
	if doc == nil {
		return nil, errs.Wrap(errs.ErrSerialization, "xmldps.serialize", fmt.Errorf("nil document"))
	}

	out := xmltree.NewDocument()
	root := out.CreateElement("DPS")
	root.CreateAttr("versao", s.version)
	root.CreateAttr("xmlns", s.namespace)

	inf := root.CreateElement("infDPS")
	inf.CreateAttr("Id", doc.ID.String())
	leaf(inf, "tpAmb", strconv.Itoa(int(doc.Environment)))
	leaf(inf, "dhEmi", doc.IssuedAt.Format(timestampLayout))
	leaf(inf, "verAplic", doc.AppVersion)
	leaf(inf, "serie", strconv.Itoa(doc.Series))
	leaf(inf, "nDPS", strconv.FormatInt(doc.Number, 10))
	leaf(inf, "dCompet", formatDate(doc.CompetenceDate))
	leaf(inf, "tpEmit", strconv.Itoa(int(doc.EmitterType)))
	leaf(inf, "cLocEmi", doc.EmitterMunicipality)

	writeProvider(inf, doc.Provider)
	if doc.Customer != nil {
		writeCustomer(inf, doc.Customer)
	}
	writeService(inf, doc.Service)
	writeValues(inf, doc)

	data, err := xmltree.Write(out)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSerialization, "xmldps.serialize", err)
	}
	if err := xmltree.WellFormed(data); err != nil {
		return nil, errs.Wrap(errs.ErrSerialization, "xmldps.serialize", err)
	}
	return data, nil
}

func writeProvider(parent *etree.Element, p dps.Provider) {
	prest := parent.CreateElement("prest")
	writeIdentity(prest, p.TaxID)
	leaf(prest, "IM", p.MunicipalRegistration)
	leaf(prest, "xNome", p.Name)
	if p.Address != nil {
		writeAddress(prest, p.Address)
	}
	leaf(prest, "fone", p.Phone)
	leaf(prest, "email", p.Email)

	reg := prest.CreateElement("regTrib")
	leaf(reg, "opSimpNac", strconv.Itoa(int(p.Regime.SimplesNacional)))
	if p.Regime.SNRegime > 0 {
		leaf(reg, "regApTribSN", strconv.Itoa(p.Regime.SNRegime))
	}
	leaf(reg, "regEspTrib", strconv.Itoa(p.Regime.SpecialRegime))
}

func writeCustomer(parent *etree.Element, c *dps.Customer) {
	toma := parent.CreateElement("toma")
	writeIdentity(toma, c.Identity)
	leaf(toma, "IM", c.MunicipalRegistration)
	leaf(toma, "xNome", c.Name)
	if c.Address != nil {
		writeAddress(toma, c.Address)
	}
	leaf(toma, "fone", c.Phone)
	leaf(toma, "email", c.Email)
}

func writeIdentity(parent *etree.Element, id dps.Identity) {
	switch v := id.(type) {
	case dps.CNPJ:
		leaf(parent, "CNPJ", v.Digits())
	case dps.CPF:
		leaf(parent, "CPF", v.Digits())
	case dps.ForeignNIF:
		leaf(parent, "NIF", string(v))
	case dps.NoNIF:
		leaf(parent, "cNaoNIF", strconv.Itoa(int(v)))
	}
}

func writeAddress(parent *etree.Element, a *dps.Address) {
	end := parent.CreateElement("end")
	switch loc := a.Location.(type) {
	case dps.NationalLocation:
		nac := end.CreateElement("endNac")
		leaf(nac, "cMun", loc.MunicipalityCode)
		leaf(nac, "CEP", loc.PostalCode)
	case dps.ForeignLocation:
		ext := end.CreateElement("endExt")
		leaf(ext, "cPais", loc.CountryCode)
		leaf(ext, "cEndPost", loc.PostalCode)
		leaf(ext, "xCidade", loc.City)
		leaf(ext, "xEstProvReg", loc.Region)
	}
	leaf(end, "xLgr", a.Street)
	leaf(end, "nro", a.Number)
	leaf(end, "xCpl", a.Complement)
	leaf(end, "xBairro", a.District)
}

func writeService(parent *etree.Element, s dps.Service) {
	serv := parent.CreateElement("serv")
	loc := serv.CreateElement("locPrest")
	if s.Abroad() {
		leaf(loc, "cPaisPrestacao", s.CountryCode)
	} else {
		leaf(loc, "cLocPrestacao", s.MunicipalityCode)
	}

	c := serv.CreateElement("cServ")
	leaf(c, "cTribNac", s.NationalTaxCode)
	leaf(c, "cTribMun", s.MunicipalTaxCode)
	leaf(c, "xDescServ", s.Description)
	leaf(c, "cNBS", s.NBSCode)
}

func writeValues(parent *etree.Element, doc *dps.Document) {
	v := doc.Values
	valores := parent.CreateElement("valores")

	prest := valores.CreateElement("vServPrest")
	optionalMoney(prest, "vReceb", v.Received)
	leaf(prest, "vServ", dps.FormatMoney(v.Gross))

	if dps.Significant(v.DiscountUnconditioned) || dps.Significant(v.DiscountConditioned) {
		desc := valores.CreateElement("vDescCondIncond")
		optionalMoney(desc, "vDescIncond", v.DiscountUnconditioned)
		optionalMoney(desc, "vDescCond", v.DiscountConditioned)
	}
	if dps.Significant(v.Deduction) {
		ded := valores.CreateElement("vDedRed")
		leaf(ded, "vDR", dps.FormatMoney(v.Deduction))
	}

	trib := valores.CreateElement("trib")
	mun := trib.CreateElement("tribMun")
	leaf(mun, "tribISSQN", strconv.Itoa(int(doc.Taxation.ISSQN)))
	if doc.Taxation.ISSQN == dps.TaxationExport {
		leaf(mun, "cPaisResult", doc.Taxation.ResultCountry)
	}
	if doc.Taxation.ISSQN == dps.TaxationImmune && doc.Taxation.ImmunityType > 0 {
		leaf(mun, "tpImunidade", strconv.Itoa(doc.Taxation.ImmunityType))
	}
	leaf(mun, "tpRetISSQN", strconv.Itoa(int(doc.Taxation.Retention)))
	if doc.Taxation.ISSQN == dps.TaxationTaxable && dps.Significant(v.ISSRate) {
		leaf(mun, "pAliq", dps.FormatMoney(v.ISSRate))
	}

	if !v.Retentions.Empty() {
		writeFederal(trib, v.Retentions)
	}

	tot := trib.CreateElement("totTrib")
	leaf(tot, "indTotTrib", strconv.Itoa(dps.TotalTaxIndicator))
}

func writeFederal(parent *etree.Element, r dps.Retentions) {
	fed := parent.CreateElement("tribFed")
	if pc := r.PISCOFINS; pc != nil {
		el := fed.CreateElement("piscofins")
		leaf(el, "CST", pc.CST)
		optionalMoney(el, "vBCPisCofins", pc.Base)
		optionalMoney(el, "pAliqPis", pc.RatePIS)
		optionalMoney(el, "pAliqCofins", pc.RateCOFINS)
		optionalMoney(el, "vPis", pc.AmountPIS)
		optionalMoney(el, "vCofins", pc.AmountCOFINS)
		if pc.Retained {
			leaf(el, "tpRetPisCofins", "1")
		} else {
			leaf(el, "tpRetPisCofins", "2")
		}
	}
	optionalMoney(fed, "vRetCP", r.INSS)
	optionalMoney(fed, "vRetIRRF", r.IR)
	optionalMoney(fed, "vRetCSLL", r.CSLL)
}

// leaf cria o elemento só quando há valor; elementos vazios nunca são emitidos.
func leaf(parent *etree.Element, tag, value string) {
	if value == "" {
		return
	}
	parent.CreateElement(tag).SetText(value)
}

func optionalMoney(parent *etree.Element, tag string, v decimal.Decimal) {
	if dps.Significant(v) {
		leaf(parent, tag, dps.FormatMoney(v))
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
