package fetcher

import (
	"fmt"
	"math/rand"
)

// RenderProfile configures the init script injected before each navigation
// (spec §4.2: "hides automation indicators: driver flag unset, plausible
// plugin/locale/permissions stubs"). Two presets exist per the §9 open
// question on profile authoritativeness; Permissive is the default.
type RenderProfile struct {
	Name                string
	HideWebdriver        bool
	SpoofPlugins         bool
	SpoofPermissionsAPI  bool
	Platform             string
	Language             string
	HardwareConcurrency  int
	DeviceMemory         int
}

// PermissiveProfile does the minimum needed to keep SPA markup from
// obviously flagging the crawler, without full fingerprint spoofing.
func PermissiveProfile() *RenderProfile {
	return &RenderProfile{
		Name:                "permissive",
		HideWebdriver:       true,
		SpoofPlugins:        false,
		SpoofPermissionsAPI: false,
		Platform:            "Linux x86_64",
		Language:            "en-US",
		HardwareConcurrency: 8,
		DeviceMemory:        8,
	}
}

// StealthProfile applies the fuller browser-emulation preset.
func StealthProfile() *RenderProfile {
	platforms := []string{"Win32", "MacIntel", "Linux x86_64"}
	return &RenderProfile{
		Name:                "stealth",
		HideWebdriver:       true,
		SpoofPlugins:        true,
		SpoofPermissionsAPI: true,
		Platform:            platforms[rand.Intn(len(platforms))],
		Language:            "en-US",
		HardwareConcurrency: 4 + rand.Intn(13),
		DeviceMemory:        8,
	}
}

// InitScript returns the JavaScript injected into every new document,
// before any page script runs.
func (p *RenderProfile) InitScript() string {
	script := fmt.Sprintf(`
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
`, p.Platform, p.Language, p.Language, p.HardwareConcurrency, p.DeviceMemory)

	if p.HideWebdriver {
		script += "Object.defineProperty(navigator, 'webdriver', { get: () => false });\n"
	}

	if p.SpoofPermissionsAPI {
		script += `
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);
`
	}

	if p.SpoofPlugins {
		script += `
Object.defineProperty(navigator, 'plugins', {
	get: () => {
		const plugins = [
			{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
			{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
			{ name: 'Native Client', filename: 'internal-nacl-plugin' },
		];
		plugins.length = 3;
		return plugins;
	}
});
`
	}

	return script
}
