// Package fingerprint produces synthetic browser/device identity signals.
package fingerprint

import (
	"strings"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
)

// ColorDepth is constant across all generated screens.
const ColorDepth = 24

var userAgents = map[domain.DeviceClass][]string{
	domain.DeviceDesktop: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	},
	domain.DeviceMobile: {
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1",
	},
}

var screens = map[domain.DeviceClass][][2]int{
	domain.DeviceDesktop: {{1920, 1080}, {1366, 768}, {1536, 864}, {2560, 1440}, {1440, 900}},
	domain.DeviceMobile:  {{390, 844}, {393, 873}, {412, 915}, {375, 667}, {430, 932}},
}

var (
	coreCounts  = []int{4, 8, 12, 16}
	memorySizes = []int{4, 8, 16}
)

var platforms = map[domain.DeviceClass]string{
	domain.DeviceDesktop: "Win32",
	domain.DeviceMobile:  "iPhone",
}

// Generator draws fingerprints from fixed catalogs. It holds no state
// beyond its random source.
type Generator struct {
	rng randutil.Source
}

// NewGenerator creates a fingerprint generator. A nil source uses the
// global generator.
func NewGenerator(rng randutil.Source) *Generator {
	if rng == nil {
		rng = randutil.Default()
	}
	return &Generator{rng: rng}
}

// Generate returns a fingerprint for the device class. Unknown classes
// are treated as desktop.
func (g *Generator) Generate(class domain.DeviceClass) domain.Fingerprint {
	if class != domain.DeviceMobile {
		class = domain.DeviceDesktop
	}
	res := randutil.Pick(g.rng, screens[class])
	return domain.Fingerprint{
		UserAgent: randutil.Pick(g.rng, userAgents[class]),
		Screen: domain.Screen{
			Width:      res[0],
			Height:     res[1],
			ColorDepth: ColorDepth,
		},
		Hardware: domain.Hardware{
			Cores:  randutil.Pick(g.rng, coreCounts),
			Memory: randutil.Pick(g.rng, memorySizes),
		},
		Platform: platforms[class],
	}
}

// GenerateForOS maps an operator-facing OS label to a device class and
// generates a fingerprint for it.
func (g *Generator) GenerateForOS(osLabel string) domain.Fingerprint {
	return g.Generate(DeviceClassForOS(osLabel))
}

// DeviceClassForOS maps "iOS", "Android" and "Mobile" to mobile and
// everything else to desktop.
func DeviceClassForOS(osLabel string) domain.DeviceClass {
	switch strings.ToLower(strings.TrimSpace(osLabel)) {
	case "ios", "android", "mobile":
		return domain.DeviceMobile
	default:
		return domain.DeviceDesktop
	}
}

// UserAgents returns a copy of the catalog for a device class.
func UserAgents(class domain.DeviceClass) []string {
	return append([]string(nil), userAgents[class]...)
}
