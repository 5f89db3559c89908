package probe

import (
	"regexp"
	"strings"
)

// Browser processes for which a domain is extracted from the window title.
var browserProcesses = map[string]struct{}{
	"chrome.exe":   {},
	"chrome":       {},
	"chromium":     {},
	"msedge.exe":   {},
	"msedge":       {},
	"firefox.exe":  {},
	"firefox":      {},
	"brave.exe":    {},
	"brave":        {},
	"safari":       {},
	"vivaldi":      {},
	"opera.exe":    {},
	"opera":        {},
	"librewolf":    {},
	"epiphany":     {},
	"qutebrowser":  {},
	"midori":       {},
	"konqueror":    {},
	"waterfox.exe": {},
	"waterfox":     {},
}

var hostPattern = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9-]*(?:\.[a-z0-9][a-z0-9-]*)*\.[a-z]{2,})\b`)

// IsBrowser reports whether the process is a recognized browser.
func IsBrowser(process string) bool {
	_, ok := browserProcesses[strings.ToLower(process)]
	return ok
}

// BrowserDomain extracts a host-looking token from a browser window title.
// Browsers commonly surface the page host in the title (or the page title
// contains the address); when nothing resolvable is present the domain is
// simply absent, which downstream consumers treat as "no domain".
func BrowserDomain(process, title string) string {
	if !IsBrowser(process) {
		return ""
	}
	m := hostPattern.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
