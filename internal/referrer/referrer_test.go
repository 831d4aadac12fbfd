package referrer

import (
	"net/url"
	"strings"
	"testing"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource returns the same float on every draw.
type fixedSource struct{ f float64 }

func (s fixedSource) Float64() float64     { return s.f }
func (s fixedSource) IntN(n int) int       { return 0 }
func (s fixedSource) Int64N(n int64) int64 { return 0 }

func TestOrganicReferrer_ParsesAndCarriesKeyword(t *testing.T) {
	g := NewGenerator(randutil.Seeded(9))
	keywords := []string{"running shoes", "café & bar", "a+b=c", "plain"}

	for _, name := range append(Engines(), "unknown-engine", "") {
		for _, kw := range keywords {
			raw := g.OrganicReferrer(kw, name)
			u, err := url.Parse(raw)
			require.NoError(t, err, raw)
			assert.True(t, u.IsAbs(), raw)
			assert.Equal(t, "https", u.Scheme)
			assert.True(t, strings.HasPrefix(u.Host, "www."), raw)
			assert.Equal(t, "/search", u.Path)

			e := Lookup(name)
			assert.Equal(t, kw, u.Query().Get(e.QueryParam), raw)
			assert.Contains(t, e.Domains, strings.TrimPrefix(u.Host, "www."))
		}
	}
}

func TestOrganicReferrer_GoogleExtras(t *testing.T) {
	g := NewGenerator(randutil.Seeded(1))
	u, err := url.Parse(g.OrganicReferrer("seo tools", "Google"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "seo tools", q.Get("q"))
	assert.Equal(t, "seo tools", q.Get("oq"))
	assert.Equal(t, "chrome", q.Get("sourceid"))
	assert.Equal(t, "UTF-8", q.Get("ie"))
}

func TestOrganicReferrer_YahooUsesP(t *testing.T) {
	g := NewGenerator(randutil.Seeded(1))
	u, err := url.Parse(g.OrganicReferrer("weather", "yahoo"))
	require.NoError(t, err)
	assert.Equal(t, "weather", u.Query().Get("p"))
	assert.Empty(t, u.Query().Get("q"))
}

func TestOrganicReferrer_UnknownFallsBackToGoogle(t *testing.T) {
	g := NewGenerator(randutil.Seeded(1))
	u, err := url.Parse(g.OrganicReferrer("x", "altavista"))
	require.NoError(t, err)
	assert.Contains(t, engines["google"].Domains, strings.TrimPrefix(u.Host, "www."))
}

func TestSourceMedium_AlwaysOrganic(t *testing.T) {
	for _, name := range []string{"google", "Bing", "yahoo", "nope", "", "  DuckDuckGo "} {
		sm := SourceMedium(name)
		assert.Equal(t, domain.MediumOrganic, sm.Medium, name)
		assert.NotEmpty(t, sm.Source)
	}
	assert.Equal(t, "bing", SourceMedium("Bing").Source)
	assert.Equal(t, "google", SourceMedium("").Source)
}

func TestRandomEngine_CumulativeWalk(t *testing.T) {
	tests := []struct {
		draw float64
		want string
	}{
		{0.0, "google"},
		{0.84, "google"},
		{0.86, "bing"},
		{0.94, "yahoo"},
		{0.985, "duckduckgo"},
		{0.9999999, "duckduckgo"},
	}
	for _, tt := range tests {
		g := NewGenerator(fixedSource{tt.draw})
		assert.Equal(t, tt.want, g.RandomEngine("US"), "draw=%v", tt.draw)
	}
}

func TestRandomEngine_RoundingFallsBackToGoogle(t *testing.T) {
	// A draw past the accumulated total must still resolve.
	g := NewGenerator(fixedSource{1.5})
	assert.Equal(t, "google", g.RandomEngine(""))
}

func TestRandomEngine_MarketOverride(t *testing.T) {
	g := NewGenerator(fixedSource{0.80})
	assert.Equal(t, "yahoo", g.RandomEngine("jp"))
	assert.Equal(t, "google", g.RandomEngine("US"))
}

func TestRandomEngine_Distribution(t *testing.T) {
	g := NewGenerator(randutil.Seeded(99))
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[g.RandomEngine("")]++
	}
	assert.InDelta(t, 0.85, float64(counts["google"])/n, 0.02)
	assert.InDelta(t, 0.08, float64(counts["bing"])/n, 0.015)
}
