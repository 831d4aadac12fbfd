// Package referrer builds synthetic search-engine referrers and the
// source/medium attribution that goes with them.
package referrer

import (
	"net/url"
	"strings"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
)

// DefaultEngine is used when an engine name is empty or unknown.
const DefaultEngine = "google"

// Engine describes how a search engine formats its result URLs.
type Engine struct {
	Name       string
	Domains    []string
	QueryParam string
	// Extra parameters appended after the query, in order.
	Extra [][2]string
}

var engines = map[string]Engine{
	"google": {
		Name:       "google",
		Domains:    []string{"google.com", "google.co.uk", "google.ca", "google.com.au", "google.de"},
		QueryParam: "q",
		Extra:      [][2]string{{"sourceid", "chrome"}, {"ie", "UTF-8"}},
	},
	"bing": {
		Name:       "bing",
		Domains:    []string{"bing.com"},
		QueryParam: "q",
	},
	"yahoo": {
		Name:       "yahoo",
		Domains:    []string{"yahoo.com", "yahoo.co.jp"},
		QueryParam: "p",
	},
	"duckduckgo": {
		Name:       "duckduckgo",
		Domains:    []string{"duckduckgo.com"},
		QueryParam: "q",
	},
	"yandex": {
		Name:       "yandex",
		Domains:    []string{"yandex.com", "yandex.ru"},
		QueryParam: "text",
	},
	"ecosia": {
		Name:       "ecosia",
		Domains:    []string{"ecosia.org"},
		QueryParam: "q",
	},
}

// weight is one row of a market weight table. Tables are walked in order.
type weight struct {
	engine string
	w      float64
}

var defaultWeights = []weight{
	{"google", 0.85},
	{"bing", 0.08},
	{"yahoo", 0.05},
	{"duckduckgo", 0.02},
}

var marketWeights = map[string][]weight{
	"JP": {{"google", 0.70}, {"yahoo", 0.25}, {"bing", 0.04}, {"duckduckgo", 0.01}},
	"BR": {{"google", 0.92}, {"bing", 0.05}, {"yahoo", 0.02}, {"duckduckgo", 0.01}},
	"IN": {{"google", 0.92}, {"bing", 0.05}, {"yahoo", 0.02}, {"duckduckgo", 0.01}},
}

// Generator produces referrer signals.
type Generator struct {
	rng randutil.Source
}

// NewGenerator creates a referrer generator. A nil source uses the global
// generator.
func NewGenerator(rng randutil.Source) *Generator {
	if rng == nil {
		rng = randutil.Default()
	}
	return &Generator{rng: rng}
}

// Lookup resolves an engine by name, falling back to google.
func Lookup(name string) Engine {
	if e, ok := engines[normalize(name)]; ok {
		return e
	}
	return engines[DefaultEngine]
}

// OrganicReferrer returns a search result URL for keyword on the named
// engine. Unknown engines fall back to google.
func (g *Generator) OrganicReferrer(keyword, engineName string) string {
	e := Lookup(engineName)
	host := randutil.Pick(g.rng, e.Domains)

	var b strings.Builder
	b.WriteString("https://www.")
	b.WriteString(host)
	b.WriteString("/search?")
	b.WriteString(e.QueryParam)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(keyword))
	if e.Name == "google" {
		b.WriteString("&oq=")
		b.WriteString(url.QueryEscape(keyword))
	}
	for _, kv := range e.Extra {
		b.WriteByte('&')
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// SourceMedium returns the attribution tuple for an engine. The medium is
// always "organic".
func SourceMedium(engineName string) domain.SourceMedium {
	source := normalize(engineName)
	if source == "" {
		source = DefaultEngine
	}
	return domain.SourceMedium{Source: source, Medium: domain.MediumOrganic}
}

// RandomEngine draws an engine name using the market's weight table.
func (g *Generator) RandomEngine(market string) string {
	table, ok := marketWeights[strings.ToUpper(strings.TrimSpace(market))]
	if !ok {
		table = defaultWeights
	}
	draw := g.rng.Float64()
	total := 0.0
	for _, row := range table {
		total += row.w
		if draw < total {
			return row.engine
		}
	}
	return DefaultEngine
}

// Engines returns the names of all catalogued engines.
func Engines() []string {
	out := make([]string, 0, len(engines))
	for name := range engines {
		out = append(out, name)
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
