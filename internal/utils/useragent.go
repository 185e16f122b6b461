package utils

import "strings"

// DeviceLabel condenses a raw User-Agent header into a coarse
// "<browser> on <platform>" summary for session records. It is a
// best-effort label for humans reviewing their active sessions, not a
// full parser.
func DeviceLabel(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "unknown device"
	}

	browser := "unknown browser"
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge"):
		browser = "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		browser = "Opera"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "curl"):
		browser = "curl"
	case strings.Contains(ua, "postman"):
		browser = "Postman"
	}

	platform := "unknown platform"
	switch {
	case strings.Contains(ua, "android"):
		platform = "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		platform = "iOS"
	case strings.Contains(ua, "windows"):
		platform = "Windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		platform = "macOS"
	case strings.Contains(ua, "linux"):
		platform = "Linux"
	}

	if browser == "unknown browser" && platform == "unknown platform" {
		// Keep a short prefix of the raw string so unrecognized
		// clients are still distinguishable in a session list.
		if len(userAgent) > 40 {
			return userAgent[:40]
		}
		return userAgent
	}
	return browser + " on " + platform
}
