package device

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemEnvironment reports the terminal the CLI client runs in.
type SystemEnvironment struct {
	Version string
}

func (s SystemEnvironment) Environment() Environment {
	version := s.Version
	if version == "" {
		version = "dev"
	}
	return Environment{
		UserAgent:    "customer-onboarding-cli/" + version + " (" + runtime.GOOS + "; " + runtime.GOARCH + ") Go/" + strings.TrimPrefix(runtime.Version(), "go"),
		Platform:     runtime.GOOS,
		Language:     localeLanguage(),
		ScreenWidth:  envInt("COLUMNS"),
		ScreenHeight: envInt("LINES"),
	}
}

// localeLanguage maps LANG-style values like "en_US.UTF-8" to "en-US".
func localeLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

// StaticLocationProvider returns a fixed fix, e.g. from command-line flags.
// A zero provider reports the location service as unavailable.
type StaticLocationProvider struct {
	Sample *LocationSample
	Now    func() time.Time
}

func (p StaticLocationProvider) CurrentPosition(ctx context.Context, _ PositionOptions) (LocationSample, error) {
	if err := ctx.Err(); err != nil {
		return LocationSample{}, err
	}
	if p.Sample == nil {
		return LocationSample{}, ErrLocationUnavailable
	}
	s := *p.Sample
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	s.CapturedAt = now()
	return s, nil
}
