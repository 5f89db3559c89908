package probe

import "testing"

func TestIsBrowser(t *testing.T) {
	if !IsBrowser("chrome.exe") || !IsBrowser("Firefox") {
		t.Error("known browsers not recognized")
	}
	if IsBrowser("code.exe") || IsBrowser("") {
		t.Error("non-browser recognized as browser")
	}
}

func TestBrowserDomain(t *testing.T) {
	tests := []struct {
		name    string
		process string
		title   string
		want    string
	}{
		{"host in title", "chrome.exe", "Bug report - tracker.example.com", "tracker.example.com"},
		{"bare domain", "firefox", "example.com - Mozilla Firefox", "example.com"},
		{"uppercase normalized", "chrome.exe", "Dashboard | Tracker.Example.COM", "tracker.example.com"},
		{"no host present", "chrome.exe", "New Tab", ""},
		{"non-browser ignored", "code.exe", "tracker.example.com - notes.md", ""},
		{"version number not a host", "chrome.exe", "Release 1.2 notes", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrowserDomain(tt.process, tt.title); got != tt.want {
				t.Errorf("BrowserDomain(%q, %q) = %q, want %q", tt.process, tt.title, got, tt.want)
			}
		})
	}
}
