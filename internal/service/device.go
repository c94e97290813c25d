package service

import "strings"

// DeviceInfo is the best-effort description of the client stored on each
// session row. Parsing is substring matching over the User-Agent; anything
// unrecognized degrades to generic labels rather than failing.
type DeviceInfo struct {
	DeviceName  string
	BrowserInfo string
	IPAddress   string
	Location    string
}

func ParseDevice(userAgent, ip string) DeviceInfo {
	return DeviceInfo{
		DeviceName:  deviceNameFrom(userAgent),
		BrowserInfo: browserFrom(userAgent),
		IPAddress:   ip,
		Location:    "unknown",
	}
}

func deviceNameFrom(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "iphone"):
		return "iPhone"
	case strings.Contains(l, "ipad"):
		return "iPad"
	case strings.Contains(l, "android"):
		return "Android"
	case strings.Contains(l, "macintosh"), strings.Contains(l, "mac os"):
		return "Mac"
	case strings.Contains(l, "windows"):
		return "Windows PC"
	case strings.Contains(l, "linux"):
		return "Linux"
	case ua == "":
		return "unknown device"
	default:
		return "unknown device"
	}
}

func browserFrom(ua string) string {
	l := strings.ToLower(ua)
	switch {
	// Edge and Opera embed "chrome"; check them first.
	case strings.Contains(l, "edg/"), strings.Contains(l, "edge"):
		return "Edge"
	case strings.Contains(l, "opr/"), strings.Contains(l, "opera"):
		return "Opera"
	case strings.Contains(l, "firefox"):
		return "Firefox"
	case strings.Contains(l, "chrome"):
		return "Chrome"
	case strings.Contains(l, "safari"):
		return "Safari"
	case ua == "":
		return "unknown"
	default:
		return "unknown"
	}
}
