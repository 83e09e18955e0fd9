package device

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// LowAccuracyMeters is the accuracy above which a sample is low-confidence.
const LowAccuracyMeters = 100

var (
	ErrLocationTimeout     = errors.New("location request timed out")
	ErrLocationUnavailable = errors.New("location service unavailable")
)

// LocationError is returned when a sample could not be acquired. It never
// blocks registration; the caller may skip location instead.
type LocationError struct {
	Err error
}

func (e *LocationError) Error() string {
	return "unable to get location: " + e.Err.Error()
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"`
	CapturedAt     time.Time `json:"timestamp"`
}

// LowConfidence flags samples worse than LowAccuracyMeters.
func (s LocationSample) LowConfidence() bool {
	return s.AccuracyMeters > LowAccuracyMeters
}

// MapURL returns an OpenStreetMap embed URL centred on the sample.
func (s LocationSample) MapURL() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	bbox := f(s.Longitude-0.01) + "," + f(s.Latitude-0.01) + "," + f(s.Longitude+0.01) + "," + f(s.Latitude+0.01)
	q := url.Values{}
	q.Set("bbox", bbox)
	q.Set("layer", "mapnik")
	q.Set("marker", f(s.Latitude)+","+f(s.Longitude))
	return "https://www.openstreetmap.org/export/embed.html?" + q.Encode()
}

type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// LocationProvider abstracts the host's location service.
type LocationProvider interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (LocationSample, error)
}

// Acquire asks p for a fresh high-accuracy fix and gives up after timeout,
// even if the provider ignores ctx.
func Acquire(ctx context.Context, p LocationProvider, timeout time.Duration) (LocationSample, error) {
	if p == nil {
		return LocationSample{}, &LocationError{Err: ErrLocationUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		sample LocationSample
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := p.CurrentPosition(ctx, PositionOptions{
			HighAccuracy: true,
			Timeout:      timeout,
			MaximumAge:   0,
		})
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return LocationSample{}, &LocationError{Err: ErrLocationTimeout}
			}
			return LocationSample{}, &LocationError{Err: r.err}
		}
		return r.sample, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return LocationSample{}, &LocationError{Err: ErrLocationTimeout}
		}
		return LocationSample{}, &LocationError{Err: fmt.Errorf("location request cancelled: %w", ctx.Err())}
	}
}
