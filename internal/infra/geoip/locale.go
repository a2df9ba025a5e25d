package geoip

import "strings"

var countryLocales = map[string]string{
	"ID": "id",
	"ES": "es", "MX": "es", "AR": "es", "CO": "es", "CL": "es", "PE": "es",
	"VE": "es", "EC": "es", "GT": "es", "CU": "es", "BO": "es", "DO": "es",
	"HN": "es", "PY": "es", "SV": "es", "NI": "es", "CR": "es", "PA": "es",
	"UY": "es",
}

// LocaleForCountry maps an ISO country code to a supported locale, or "" when
// the country has no specific locale.
func LocaleForCountry(code string) string {
	return countryLocales[strings.ToUpper(strings.TrimSpace(code))]
}
