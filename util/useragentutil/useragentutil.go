package useragentutil

import (
	"regexp"
	"strings"

	"github.com/mssola/user_agent"
)

// Device, browser and OS buckets reported in deviceDetail. The zero value is
// the "unknown" bucket so a missing user agent degrades instead of failing.
const (
	DEVICE_TYPE_DESKTOP = iota
	DEVICE_TYPE_MOBILE
	DEVICE_TYPE_TABLET
)

const (
	BROWSER_OTHER = iota
	BROWSER_CHROME
	BROWSER_FIREFOX
	BROWSER_SAFARI
	BROWSER_EDGE
	BROWSER_INTERNET_EXPLORER
)

const (
	OS_OTHER = iota
	OS_ANDROID
	OS_IOS
	OS_WINDOWS
	OS_MAC
	OS_LINUX
	OS_UNIX
)

var (
	tabletPattern  = regexp.MustCompile(`(?i)ipad|tablet|playbook|silk|kindle`)
	edgePattern    = regexp.MustCompile(`Edge?/|EdgA/`)
	chromePattern  = regexp.MustCompile(`Chrome/|CriOS/`)
	firefoxPattern = regexp.MustCompile(`Firefox/|FxiOS/`)
	safariPattern  = regexp.MustCompile(`Safari/`)
	iePattern      = regexp.MustCompile(`Trident/|MSIE `)
)

// GetDeviceType buckets a user agent into desktop, mobile or tablet. Tablet
// patterns are checked before the generic mobile check since Android tablets
// also match mobile heuristics.
func GetDeviceType(ua string) int {
	if tabletPattern.MatchString(ua) {
		return DEVICE_TYPE_TABLET
	}
	if strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile") {
		return DEVICE_TYPE_TABLET
	}
	if parsed := user_agent.New(ua); parsed != nil && parsed.Mobile() {
		return DEVICE_TYPE_MOBILE
	}
	return DEVICE_TYPE_DESKTOP
}

// GetBrowser buckets a user agent into a browser family. The checks are
// ordered: Edge and Chrome must be tested before Safari because their user
// agents also carry the Safari token.
func GetBrowser(ua string) int {
	switch {
	case edgePattern.MatchString(ua):
		return BROWSER_EDGE
	case chromePattern.MatchString(ua):
		return BROWSER_CHROME
	case firefoxPattern.MatchString(ua):
		return BROWSER_FIREFOX
	case safariPattern.MatchString(ua) && strings.Contains(ua, "Version/"):
		return BROWSER_SAFARI
	case iePattern.MatchString(ua):
		return BROWSER_INTERNET_EXPLORER
	default:
		return BROWSER_OTHER
	}
}

// GetOS buckets a user agent into an operating system family. "like Mac" is
// the iOS marker and must be tested before the bare Mac check.
func GetOS(ua string) int {
	switch {
	case strings.Contains(ua, "Android"):
		return OS_ANDROID
	case strings.Contains(ua, "like Mac"):
		return OS_IOS
	case strings.Contains(ua, "Win"):
		return OS_WINDOWS
	case strings.Contains(ua, "Mac"):
		return OS_MAC
	case strings.Contains(ua, "Linux"):
		return OS_LINUX
	case strings.Contains(ua, "X11"):
		return OS_UNIX
	default:
		return OS_OTHER
	}
}
