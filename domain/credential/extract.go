package credential

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
	// ICP-Brasil otherName: dados de pessoa física e CNPJ de pessoa jurídica.
	oidICPPersonData = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
	oidICPCNPJ       = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}
)

// e-CNPJ: "RAZAO SOCIAL:12345678000195"; e-CPF: "NOME:12345678901".
var reCNSuffix = regexp.MustCompile(`:(\d{11}|\d{14})$`)

// ExtractInfo lê os metadados do certificado, incluindo CNPJ/CPF no padrão
// ICP-Brasil. O otherName do SAN tem precedência sobre o sufixo do CN.
func ExtractInfo(cert *x509.Certificate) Info {
	sum := sha256.Sum256(cert.Raw)
	info := Info{
		Subject:     cert.Subject.String(),
		CommonName:  normalizeSpace(cert.Subject.CommonName),
		Issuer:      cert.Issuer.String(),
		Serial:      cert.SerialNumber.String(),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		Fingerprint: strings.ToUpper(hex.EncodeToString(sum[:])),
	}

	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidSubjectAltName) {
			continue
		}
		for oid, value := range otherNames(ext.Value) {
			switch oid {
			case oidICPCNPJ.String():
				if digits := onlyDigits(value); len(digits) == 14 {
					info.CNPJ = digits
				}
			case oidICPPersonData.String():
				// data de nascimento (8) + CPF (11) + ...
				if digits := onlyDigits(value); len(digits) >= 19 {
					info.CPF = digits[8:19]
				}
			}
		}
	}

	if info.CNPJ == "" && info.CPF == "" {
		if m := reCNSuffix.FindStringSubmatch(info.CommonName); len(m) == 2 {
			if len(m[1]) == 14 {
				info.CNPJ = m[1]
			} else {
				info.CPF = m[1]
			}
		}
	}
	return info
}

// otherNames devolve os otherName do SAN indexados pelo OID em texto.
// Entradas que não seguem a estrutura esperada são ignoradas.
func otherNames(der []byte) map[string]string {
	out := map[string]string{}
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil || !seq.IsCompound {
		return out
	}
	rest := seq.Bytes
	for len(rest) > 0 {
		var gn asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &gn)
		if err != nil {
			return out
		}
		if gn.Class != asn1.ClassContextSpecific || gn.Tag != 0 {
			continue
		}
		var oid asn1.ObjectIdentifier
		inner, err := asn1.Unmarshal(gn.Bytes, &oid)
		if err != nil {
			continue
		}
		var explicit asn1.RawValue
		if _, err := asn1.Unmarshal(inner, &explicit); err != nil {
			continue
		}
		var value asn1.RawValue
		if _, err := asn1.Unmarshal(explicit.Bytes, &value); err != nil {
			continue
		}
		out[oid.String()] = string(value.Bytes)
	}
	return out
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
