package worker

import (
	"strings"

	"github.com/ignite/traffic-engine/internal/pkg/randutil"
)

// DefaultCountry is attributed when a region is unknown.
const DefaultCountry = "US"

// regionCountries maps an operator-facing region label to the countries a
// hit in that region may be attributed to.
var regionCountries = map[string][]string{
	"north america": {"US", "CA", "MX"},
	"latin america": {"BR", "AR", "CL", "CO", "PE", "MX"},
	"south america": {"BR", "AR", "CL", "CO", "PE"},
	"europe":        {"GB", "DE", "FR", "ES", "IT", "NL", "SE", "PL"},
	"asia":          {"JP", "KR", "IN", "SG", "ID", "TH", "VN"},
	"asia pacific":  {"JP", "KR", "AU", "NZ", "SG", "IN"},
	"middle east":   {"AE", "SA", "IL", "TR", "QA"},
	"africa":        {"ZA", "NG", "KE", "EG", "MA"},
	"oceania":       {"AU", "NZ"},
	"global":        {"US", "GB", "DE", "JP", "BR", "IN", "AU", "CA"},

	"united states":  {"US"},
	"usa":            {"US"},
	"canada":         {"CA"},
	"united kingdom": {"GB"},
	"uk":             {"GB"},
	"germany":        {"DE"},
	"france":         {"FR"},
	"japan":          {"JP"},
	"tokyo":          {"JP"},
	"brazil":         {"BR"},
	"india":          {"IN"},
	"australia":      {"AU"},
}

// RegionCountries returns the countries for a region, or nil if unknown.
func RegionCountries(region string) []string {
	return regionCountries[strings.ToLower(strings.TrimSpace(region))]
}

// PickCountry draws a country uniformly from the region's table entry,
// falling back to DefaultCountry.
func PickCountry(rng randutil.Source, region string) string {
	codes := RegionCountries(region)
	if len(codes) == 0 {
		return DefaultCountry
	}
	return randutil.Pick(rng, codes)
}

// Flag renders a two-letter country code as its regional-indicator emoji.
func Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}
