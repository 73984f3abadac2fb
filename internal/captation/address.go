package captation

import (
	"regexp"
	"strings"
)

// stateNames maps every UF code to its full name.
var stateNames = map[string]string{
	"AC": "Acre",
	"AL": "Alagoas",
	"AP": "Amapá",
	"AM": "Amazonas",
	"BA": "Bahia",
	"CE": "Ceará",
	"DF": "Distrito Federal",
	"ES": "Espírito Santo",
	"GO": "Goiás",
	"MA": "Maranhão",
	"MT": "Mato Grosso",
	"MS": "Mato Grosso do Sul",
	"MG": "Minas Gerais",
	"PA": "Pará",
	"PB": "Paraíba",
	"PR": "Paraná",
	"PE": "Pernambuco",
	"PI": "Piauí",
	"RJ": "Rio de Janeiro",
	"RN": "Rio Grande do Norte",
	"RS": "Rio Grande do Sul",
	"RO": "Rondônia",
	"RR": "Roraima",
	"SC": "Santa Catarina",
	"SP": "São Paulo",
	"SE": "Sergipe",
	"TO": "Tocantins",
}

var (
	// ", Porto Alegre - RS, 90000-000"
	dashAddressRegexp = regexp.MustCompile(`,\s*([^,]+?)\s*-\s*([A-Z]{2})(?:\s*,\s*\d{5}-?\d{3})?\s*$`)
	// ", Porto Alegre / RS, 90000-000"
	slashAddressRegexp = regexp.MustCompile(`,\s*([^,]+?)\s*/\s*([A-Z]{2})(?:\s*,\s*\d{5}-?\d{3})?\s*$`)
	stateTokenRegexp   = regexp.MustCompile(`\b[A-Z]{2}\b`)
)

// IsValidUF reports whether code is one of the 27 federative unit codes.
func IsValidUF(code string) bool {
	_, ok := stateNames[code]
	return ok
}

// StateName returns the full name of a UF code, or "" if unknown.
func StateName(code string) string {
	return stateNames[code]
}

// StateCodes returns the UF table, used to seed the states collection.
func StateCodes() map[string]string {
	out := make(map[string]string, len(stateNames))
	for k, v := range stateNames {
		out[k] = v
	}
	return out
}

// ParseAddress extracts a city and UF from a free-text address. It returns
// nil when no valid state code can be found.
func ParseAddress(address string) *ParsedAddress {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	for _, re := range []*regexp.Regexp{dashAddressRegexp, slashAddressRegexp} {
		m := re.FindStringSubmatch(address)
		if m == nil || !IsValidUF(m[2]) {
			continue
		}
		return newParsedAddress(strings.TrimSpace(m[1]), m[2], address)
	}

	matches := stateTokenRegexp.FindAllStringIndex(address, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		code := address[start:end]
		if !IsValidUF(code) {
			continue
		}
		return newParsedAddress(cityBefore(address[:start]), code, address)
	}
	return nil
}

func newParsedAddress(city, code, original string) *ParsedAddress {
	return &ParsedAddress{
		City:              city,
		StateAbbreviation: code,
		StateName:         stateNames[code],
		OriginalAddress:   original,
	}
}

// cityBefore returns the last free-text segment of prefix.
func cityBefore(prefix string) string {
	prefix = strings.TrimRight(prefix, " \t,-/")
	cut := -1
	for _, sep := range []string{",", " - ", "/"} {
		if idx := strings.LastIndex(prefix, sep); idx >= 0 && idx+len(sep) > cut {
			cut = idx + len(sep)
		}
	}
	if cut >= 0 {
		prefix = prefix[cut:]
	}
	return strings.Trim(prefix, " \t,-")
}
