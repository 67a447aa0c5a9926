// Package clientinfo summarises a request's User-Agent for admin notifications.
package clientinfo

import (
	"strings"

	"github.com/mileusna/useragent"
)

const unknown = "Unknown"

type Info struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

func Parse(userAgent string) Info {
	if strings.TrimSpace(userAgent) == "" {
		return Info{Browser: "Unknown Browser", OS: "Unknown OS", DeviceType: unknown}
	}

	ua := useragent.Parse(userAgent)

	deviceType := "Desktop"
	switch {
	case ua.Bot:
		deviceType = "Bot"
	case ua.Mobile:
		deviceType = "Mobile"
	case ua.Tablet:
		deviceType = "Tablet"
	case !ua.Desktop:
		deviceType = unknown
	}

	return Info{
		Browser:    withVersion(ua.Name, ua.Version, "Unknown Browser"),
		OS:         withVersion(ua.OS, ua.OSVersion, "Unknown OS"),
		DeviceType: deviceType,
	}
}

// Describe renders Info on one line, e.g. "Chrome 120.0 on Windows 10 (Desktop)".
func Describe(userAgent string) string {
	info := Parse(userAgent)
	return info.Browser + " on " + info.OS + " (" + info.DeviceType + ")"
}

func withVersion(name, version, fallback string) string {
	switch {
	case name == "":
		return fallback
	case version == "":
		return name
	default:
		return name + " " + version
	}
}
