// internal/ua/ua.go
//
// User-Agent parsing for request logs.
//
// This wrapper isolates `github.com/avct/uasurfer` so the rest of the
// codebase never sees its enums.  The library's stringer names carry a
// type prefix ("BrowserChrome", "OSMacOSX"); Parse strips it.
package ua

import (
	"fmt"
	"strconv"
	"strings"

	surfer "github.com/avct/uasurfer"
)

// Info carries the attributes the request logger records.
//
// Example (Chrome on macOS):
//
//	Browser "Chrome"
//	Version "125"
//	OS      "MacOSX"
//	Device  "Desktop"
//	IsBot   false
//
// Device is one of "Desktop", "Mobile", "Tablet", or "Other".
type Info struct {
	Browser string
	Version string
	OS      string
	Device  string
	IsBot   bool
}

// Parse converts a raw header into Info.  An empty header yields Other.
func Parse(raw string) Info {
	u := surfer.Parse(raw)

	info := Info{
		Browser: strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version: versionToString(u.Browser.Version),
		OS:      strings.TrimPrefix(u.OS.Name.String(), "OS"),
		IsBot:   u.IsBot(),
	}

	switch u.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}
	return info
}

// versionToString trims trailing zero components: 17.0.0 → "17",
// 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionToString(v surfer.Version) string {
	switch {
	case v.Major == 0 && v.Minor == 0 && v.Patch == 0:
		return ""
	case v.Patch != 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor != 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(int(v.Major))
}
