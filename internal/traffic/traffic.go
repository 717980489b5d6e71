// Package traffic classifies inbound viewers by User-Agent.
package traffic

import "strings"

// maxUserAgentLength bounds UA strings before they reach storage.
const maxUserAgentLength = 500

// botSignatures are case-insensitive substrings that mark a UA as
// automated. Fixed list; no ad is ever served to a match.
var botSignatures = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"googlebot",
	"bingbot",
	"slurp",
	"duckduckbot",
	"baiduspider",
	"yandex",
	"facebookexternalhit",
	"ia_archiver",
	"headlesschrome",
	"phantomjs",
	"lighthouse",
	"pingdom",
	"uptimerobot",
}

// IsBot reports whether the User-Agent belongs to a crawler or other
// automated client. An absent UA is treated as a bot: no ad is served
// when the caller cannot be classified at all.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// Device type classifications for recorded events.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// DeviceType gives a coarse device classification by UA substring.
// Tablet is checked before mobile since tablet UAs often carry "Mobile".
func DeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// TruncateUserAgent truncates a UA string to the stored maximum.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxUserAgentLength {
		return ua[:maxUserAgentLength]
	}
	return ua
}

// TruncatePageURL truncates a page URL to the stored maximum.
func TruncatePageURL(pageURL string) string {
	if len(pageURL) > maxUserAgentLength {
		return pageURL[:maxUserAgentLength]
	}
	return pageURL
}
