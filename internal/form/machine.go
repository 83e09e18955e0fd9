package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/device"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
)

const (
	totalSteps             = 2
	defaultLocationTimeout = 10 * time.Second
)

var (
	ErrInvalidTransition  = errors.New("transition not allowed from current state")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrLocating           = errors.New("location request in progress")
	ErrEmptyRecord        = errors.New("server returned no record")
)

// Submitter sends the merged payload to the registration endpoint.
type Submitter interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.CustomerRecord, error)
}

// Draft is the data collected so far. Methods return modified copies.
type Draft struct {
	Identity Identity
	Location Location
}

func (d Draft) WithIdentity(i Identity) Draft {
	d.Identity = i
	return d
}

func (d Draft) WithLocation(l Location) Draft {
	d.Location = Location{Latitude: copyFloat(l.Latitude), Longitude: copyFloat(l.Longitude)}
	return d
}

// Payload merges both steps with info into one request value that shares no
// memory with the draft.
func (d Draft) Payload(info dto.DeviceInfo) (dto.RegisterRequest, error) {
	raw, err := json.Marshal(info)
	if err != nil {
		return dto.RegisterRequest{}, fmt.Errorf("encode device info: %w", err)
	}
	id := d.Identity
	return dto.RegisterRequest{
		FullName:    dto.StringPtr(id.FullName),
		Email:       dto.StringPtr(id.Email),
		Password:    dto.StringPtr(id.Password),
		PhoneNumber: dto.StringPtr(id.PhoneNumber),
		Gender:      dto.StringPtr(id.Gender),
		DateOfBirth: dto.StringPtr(id.DateOfBirth),
		Address:     dto.StringPtr(id.Address),
		Latitude:    copyFloat(d.Location.Latitude),
		Longitude:   copyFloat(d.Location.Longitude),
		DeviceInfo:  raw,
	}, nil
}

// State is one of IdentityStep, LocationStep, Submitting, Succeeded, Failed.
type State interface {
	isState()
}

// IdentityStep is the initial state. Errors holds inline field messages from
// the last rejected Next. Sample is the fix behind Draft.Location, if any,
// kept so the location step can show it again.
type IdentityStep struct {
	Draft  Draft
	Sample *device.LocationSample
	Errors map[string]string
}

// LocationStep waits for the user to share a location, skip, or go back.
type LocationStep struct {
	Draft       Draft
	Sample      *device.LocationSample
	Locating    bool
	LocationErr error
}

type Submitting struct {
	Draft Draft
}

// Succeeded carries the created record for the confirmation summary.
// The draft is gone at this point.
type Succeeded struct {
	Record dto.CustomerRecord
}

// Failed keeps the draft so the user can retry.
type Failed struct {
	Draft  Draft
	Sample *device.LocationSample
	Err    error
}

func (IdentityStep) isState() {}
func (LocationStep) isState() {}
func (Submitting) isState()   {}
func (Succeeded) isState()    {}
func (Failed) isState()       {}

// Progress is completed steps over total steps, as a percentage.
func Progress(s State) int {
	completed := 0
	switch s.(type) {
	case LocationStep, Submitting, Failed:
		completed = 1
	case Succeeded:
		completed = totalSteps
	}
	return completed * 100 / totalSteps
}

// Form drives one registration. All methods are safe for concurrent use; at
// most one location request or submission is outstanding at a time.
type Form struct {
	mu        sync.Mutex
	state     State
	schema    *Schema
	submitter Submitter
	env       device.EnvironmentInfoProvider
	locator   device.LocationProvider

	locationTimeout time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

type Option func(*Form)

func WithLocationTimeout(d time.Duration) Option {
	return func(f *Form) { f.locationTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(f *Form) { f.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Form) { f.logger = l }
}

func New(submitter Submitter, env device.EnvironmentInfoProvider, locator device.LocationProvider, opts ...Option) *Form {
	f := &Form{
		state:           IdentityStep{},
		schema:          NewSchema(),
		submitter:       submitter,
		env:             env,
		locator:         locator,
		locationTimeout: defaultLocationTimeout,
		now:             time.Now,
		logger:          slog.Default(),
	}
	if f.env == nil {
		f.env = device.StaticEnvironment{}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) Progress() int {
	return Progress(f.State())
}

// Next validates the identity step and, if accepted, merges it into the
// draft and moves to the location step. On rejection the state keeps the
// previous draft and records the field errors.
func (f *Form) Next(in Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.state.(IdentityStep)
	if !ok {
		return ErrInvalidTransition
	}

	if err := f.schema.ValidateIdentity(in); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.state = IdentityStep{Draft: cur.Draft, Sample: cur.Sample, Errors: verr.Fields}
		}
		return err
	}

	f.state = LocationStep{Draft: cur.Draft.WithIdentity(in), Sample: cur.Sample}
	return nil
}

// Back returns to the identity step keeping everything entered so far.
func (f *Form) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch cur := f.state.(type) {
	case LocationStep:
		if cur.Locating {
			return ErrLocating
		}
		f.state = IdentityStep{Draft: cur.Draft, Sample: cur.Sample}
	case Failed:
		f.state = IdentityStep{Draft: cur.Draft, Sample: cur.Sample}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// UseMyLocation asks the location provider for a fix. Failure is recorded on
// the state and returned, but the user can still skip or retry.
func (f *Form) UseMyLocation(ctx context.Context) (device.LocationSample, error) {
	f.mu.Lock()
	cur, ok := f.state.(LocationStep)
	if !ok {
		f.mu.Unlock()
		return device.LocationSample{}, ErrInvalidTransition
	}
	if cur.Locating {
		f.mu.Unlock()
		return device.LocationSample{}, ErrLocating
	}
	cur.Locating = true
	cur.LocationErr = nil
	f.state = cur
	f.mu.Unlock()

	sample, err := device.Acquire(ctx, f.locator, f.locationTimeout)
	if err == nil {
		lat, lon := sample.Latitude, sample.Longitude
		if verr := f.schema.ValidateLocation(Location{Latitude: &lat, Longitude: &lon}); verr != nil {
			err = &device.LocationError{Err: verr}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok = f.state.(LocationStep)
	if !ok {
		return device.LocationSample{}, ErrInvalidTransition
	}
	cur.Locating = false
	if err != nil {
		cur.LocationErr = err
		f.state = cur
		f.logger.Warn("location unavailable", "error", err)
		return device.LocationSample{}, err
	}

	cur.Sample = &sample
	cur.Draft = cur.Draft.WithLocation(Location{Latitude: &sample.Latitude, Longitude: &sample.Longitude})
	f.state = cur
	if sample.LowConfidence() {
		f.logger.Info("low accuracy location", "accuracy_m", sample.AccuracyMeters)
	}
	return sample, nil
}

// Skip submits without any location.
func (f *Form) Skip(ctx context.Context) (*dto.CustomerRecord, error) {
	return f.submit(ctx, func(Draft) Location { return Location{} })
}

// Complete submits with whatever location the draft holds.
func (f *Form) Complete(ctx context.Context) (*dto.CustomerRecord, error) {
	return f.submit(ctx, func(d Draft) Location { return d.Location })
}

func (f *Form) submit(ctx context.Context, pick func(Draft) Location) (*dto.CustomerRecord, error) {
	f.mu.Lock()
	cur, ok := f.state.(LocationStep)
	if !ok {
		_, busy := f.state.(Submitting)
		f.mu.Unlock()
		if busy {
			return nil, ErrSubmissionInFlight
		}
		return nil, ErrInvalidTransition
	}
	if cur.Locating {
		f.mu.Unlock()
		return nil, ErrLocating
	}

	loc := pick(cur.Draft)
	if err := f.schema.ValidateLocation(loc); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	draft := cur.Draft.WithLocation(loc)
	payload, err := draft.Payload(device.DeriveDeviceInfo(f.env, f.now()))
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.state = Submitting{Draft: draft}
	f.mu.Unlock()

	record, err := f.submitter.Register(ctx, payload)
	if err == nil && record == nil {
		err = ErrEmptyRecord
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		sample := cur.Sample
		if loc.Latitude == nil {
			sample = nil
		}
		f.state = Failed{Draft: draft, Sample: sample, Err: err}
		f.logger.Error("registration failed", "error", err)
		return nil, err
	}

	f.state = Succeeded{Record: *record}
	f.logger.Info("registration succeeded", "customer_uid", record.UID)
	return record, nil
}

// Retry goes from Failed back to the location step with the draft intact.
func (f *Form) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.state.(Failed)
	if !ok {
		return ErrInvalidTransition
	}
	f.state = LocationStep{Draft: cur.Draft, Sample: cur.Sample}
	return nil
}

// Acknowledge dismisses the success summary and starts a fresh form.
func (f *Form) Acknowledge() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.(Succeeded); !ok {
		return ErrInvalidTransition
	}
	f.state = IdentityStep{}
	return nil
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
