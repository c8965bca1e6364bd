package webhook

import (
	"strings"
)

// Device classes
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceOther   = "Other"
	DeviceUnknown = "Unknown"
)

const unknownGeo = "Unknown"

// botSignatures mark opens made by image proxies and mail security scanners.
var botSignatures = []string{
	"googleimageproxy",
	"cloudmark",
	"symantec",
	"spam",
	"filter",
}

var desktopSignatures = []string{"windows", "macintosh", "linux"}

// IsGenuineOpen reports whether an open event came from a person.
func IsGenuineOpen(e Event) bool {
	if e.Kind != KindOpen || e.MachineOpen {
		return false
	}
	ua := strings.ToLower(e.UserAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return false
		}
	}
	return true
}

// DeviceClass buckets a user agent. The first matching rule wins.
func DeviceClass(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "mobile"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"):
		return DeviceTablet
	}
	for _, sig := range desktopSignatures {
		if strings.Contains(ua, sig) {
			return DeviceDesktop
		}
	}
	return DeviceOther
}

// GeoKey turns a provider country code into a counter key.
func GeoKey(country string) string {
	key := fieldKey(country)
	if key == "" {
		return unknownGeo
	}
	return key
}

// fieldKey makes s safe as the last segment of a dotted document path.
func fieldKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$")
	return strings.ReplaceAll(s, ".", "_")
}

// Classify maps one event to the counter deltas it contributes. An empty map means nothing to persist.
func Classify(e Event) map[string]int64 {
	deltas := map[string]int64{}
	engaged := false

	switch e.Kind {
	case KindDelivered:
		deltas["metrics.delivered"] = 1
	case KindOpen:
		if IsGenuineOpen(e) {
			deltas["metrics.opened"] = 1
			engaged = true
		}
	case KindClick:
		deltas["metrics.clicked"] = 1
		engaged = true
	}

	if engaged {
		deltas["analytics.devices."+DeviceClass(e.UserAgent)] = 1
		deltas["analytics.geos."+GeoKey(e.Country)] = 1
	}
	return deltas
}
