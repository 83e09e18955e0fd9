// Package device derives the device-info record attached to a registration
// and acquires an optional location sample from the host.
package device

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
)

const (
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeDesktop = "desktop"
	TypeUnknown = "unknown"

	unknown = "unknown"
)

var (
	mobileMarker = regexp.MustCompile(`(?i)mobile`)
	tabletMarker = regexp.MustCompile(`(?i)tablet`)
)

// Environment is what the host exposes about the client.
type Environment struct {
	UserAgent    string
	Platform     string
	Language     string
	ScreenWidth  int
	ScreenHeight int
}

// EnvironmentInfoProvider abstracts the host so tests can pin it.
type EnvironmentInfoProvider interface {
	Environment() Environment
}

// StaticEnvironment returns the same Environment every time.
type StaticEnvironment Environment

func (e StaticEnvironment) Environment() Environment {
	return Environment(e)
}

// DeriveDeviceInfo builds the device-info record from the provider's
// environment. The result only depends on the environment and now.
func DeriveDeviceInfo(p EnvironmentInfoProvider, now time.Time) dto.DeviceInfo {
	env := p.Environment()
	return dto.DeviceInfo{
		UserAgent:        env.UserAgent,
		Platform:         orUnknown(env.Platform),
		BrowserLanguage:  orUnknown(env.Language),
		DeviceType:       ClassifyDeviceType(env.UserAgent),
		ScreenResolution: screenResolution(env.ScreenWidth, env.ScreenHeight),
		Timestamp:        now.UTC().Format(time.RFC3339Nano),
	}
}

// ClassifyDeviceType checks for a "mobile" marker first, then "tablet";
// anything else non-empty is a desktop.
func ClassifyDeviceType(userAgent string) string {
	switch {
	case strings.TrimSpace(userAgent) == "":
		return TypeUnknown
	case mobileMarker.MatchString(userAgent):
		return TypeMobile
	case tabletMarker.MatchString(userAgent):
		return TypeTablet
	default:
		return TypeDesktop
	}
}

// Describe renders a short "Browser on OS" label for logs.
func Describe(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if name == "" {
		name = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}

func screenResolution(w, h int) string {
	if w <= 0 || h <= 0 {
		return unknown
	}
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
