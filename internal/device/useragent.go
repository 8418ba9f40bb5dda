package device

import "strings"

// browser/OS markers checked in order; the first match wins, so more
// specific strings (Edge before Chrome, iOS before Mac) come first.
var browserMarkers = []struct{ marker, name string }{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
}

var osMarkers = []struct{ marker, name string }{
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Android", "Android"},
	{"Windows", "Windows"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

// NameFromUserAgent derives a human-readable label like "Chrome on macOS"
// from a raw User-Agent header. Unknown agents become "Unknown device".
func NameFromUserAgent(ua string) string {
	browser := ""
	for _, m := range browserMarkers {
		if strings.Contains(ua, m.marker) {
			browser = m.name
			break
		}
	}
	os := ""
	for _, m := range osMarkers {
		if strings.Contains(ua, m.marker) {
			os = m.name
			break
		}
	}
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown device"
	}
}
