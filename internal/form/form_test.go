package form

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/device"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
)

func janeDoe() Identity {
	return Identity{
		FullName:        "Jane Doe",
		Email:           "jane@x.com",
		PhoneNumber:     "1234567890",
		Gender:          "Female",
		DateOfBirth:     "1990-01-01",
		Address:         "1 Main St",
		Password:        "Secret1!",
		ConfirmPassword: "Secret1!",
	}
}

// fakeSubmitter records payloads and optionally blocks until released.
type fakeSubmitter struct {
	mu       sync.Mutex
	calls    atomic.Int32
	payloads []dto.RegisterRequest
	release  chan struct{}
	started  chan struct{}
	err      error
}

func (f *fakeSubmitter) Register(ctx context.Context, req dto.RegisterRequest) (*dto.CustomerRecord, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.payloads = append(f.payloads, req)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CustomerRecord{
		UID:       "uid-1",
		Name:      *req.FullName,
		Email:     *req.Email,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeSubmitter) last() dto.RegisterRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[len(f.payloads)-1]
}

type FormSuite struct {
	suite.Suite
	submitter *fakeSubmitter
	locator   device.StaticLocationProvider
	env       device.StaticEnvironment
	form      *Form
}

func TestFormSuite(t *testing.T) {
	suite.Run(t, new(FormSuite))
}

func (s *FormSuite) SetupTest() {
	s.submitter = &fakeSubmitter{}
	s.locator = device.StaticLocationProvider{
		Sample: &device.LocationSample{Latitude: 6.5244, Longitude: 3.3792, AccuracyMeters: 20},
	}
	s.env = device.StaticEnvironment{UserAgent: "Mozilla/5.0 (iPhone) Mobile Safari", Platform: "iPhone", Language: "en-US", ScreenWidth: 390, ScreenHeight: 844}
	s.form = s.newForm(s.locator)
}

func (s *FormSuite) newForm(locator device.LocationProvider) *Form {
	return New(s.submitter, s.env, locator,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }),
		WithLocationTimeout(time.Second),
	)
}

func (s *FormSuite) TestInitialState() {
	s.IsType(IdentityStep{}, s.form.State())
	s.Equal(0, s.form.Progress())
}

func (s *FormSuite) TestNextAdvancesOnValidIdentity() {
	s.Require().NoError(s.form.Next(janeDoe()))

	st, ok := s.form.State().(LocationStep)
	s.Require().True(ok)
	s.Equal(janeDoe(), st.Draft.Identity)
	s.Equal(50, s.form.Progress())
}

func (s *FormSuite) TestNextRejectsInvalidIdentity() {
	s.Run("password mismatch is attached to confirmPassword", func() {
		in := janeDoe()
		in.ConfirmPassword = "Different1!"

		err := s.form.Next(in)
		var verr *ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Equal("Passwords must match", verr.Fields["confirmPassword"])
		s.NotContains(verr.Fields, "password")

		st, ok := s.form.State().(IdentityStep)
		s.Require().True(ok)
		s.Equal(verr.Fields, st.Errors)
		s.Equal(Identity{}, st.Draft.Identity)
	})

	s.Run("each step-one constraint blocks the transition", func() {
		cases := map[string]func(*Identity){
			"fullName":        func(i *Identity) { i.FullName = "Jane D0e" },
			"email":           func(i *Identity) { i.Email = "jane-at-x" },
			"phoneNumber":     func(i *Identity) { i.PhoneNumber = "12345" },
			"gender":          func(i *Identity) { i.Gender = "Unknown" },
			"dateOfBirth":     func(i *Identity) { i.DateOfBirth = "" },
			"address":         func(i *Identity) { i.Address = "" },
			"password":        func(i *Identity) { i.Password, i.ConfirmPassword = "abc", "abc" },
			"confirmPassword": func(i *Identity) { i.ConfirmPassword = "" },
		}
		for field, mutate := range cases {
			f := s.newForm(s.locator)
			in := janeDoe()
			mutate(&in)

			err := f.Next(in)
			var verr *ValidationError
			s.Require().ErrorAs(err, &verr, field)
			s.Contains(verr.Fields, field)
			s.IsType(IdentityStep{}, f.State(), field)
		}
	})
}

func (s *FormSuite) TestBackPreservesBothSteps() {
	s.Require().NoError(s.form.Next(janeDoe()))
	_, err := s.form.UseMyLocation(context.Background())
	s.Require().NoError(err)

	s.Require().NoError(s.form.Back())
	st, ok := s.form.State().(IdentityStep)
	s.Require().True(ok)
	s.Equal(janeDoe(), st.Draft.Identity)
	s.Require().NotNil(st.Draft.Location.Latitude)
	s.Equal(6.5244, *st.Draft.Location.Latitude)
	s.Require().NotNil(st.Sample)

	s.Require().NoError(s.form.Next(janeDoe()))
	loc, ok := s.form.State().(LocationStep)
	s.Require().True(ok)
	s.Require().NotNil(loc.Draft.Location.Longitude)
	s.Equal(3.3792, *loc.Draft.Location.Longitude)
	s.Require().NotNil(loc.Sample, "shown sample must match the submitted location")
	s.Equal(6.5244, loc.Sample.Latitude)

	_, err = s.form.Complete(context.Background())
	s.Require().NoError(err)
	payload := s.submitter.last()
	s.Require().NotNil(payload.Latitude)
	s.Equal(loc.Sample.Latitude, *payload.Latitude)
}

func (s *FormSuite) TestFailedBackNextKeepsSample() {
	s.submitter.err = errors.New("network down")
	s.Require().NoError(s.form.Next(janeDoe()))
	_, err := s.form.UseMyLocation(context.Background())
	s.Require().NoError(err)
	_, err = s.form.Complete(context.Background())
	s.Require().Error(err)

	s.Require().NoError(s.form.Back())
	s.Require().NoError(s.form.Next(janeDoe()))

	loc, ok := s.form.State().(LocationStep)
	s.Require().True(ok)
	s.Require().NotNil(loc.Sample)
	s.Require().NotNil(loc.Draft.Location.Latitude)
	s.Equal(loc.Sample.Latitude, *loc.Draft.Location.Latitude)
}

func (s *FormSuite) TestSkipFailureLeavesNoSample() {
	s.submitter.err = errors.New("network down")
	s.Require().NoError(s.form.Next(janeDoe()))
	_, err := s.form.UseMyLocation(context.Background())
	s.Require().NoError(err)
	_, err = s.form.Skip(context.Background())
	s.Require().Error(err)

	s.Require().NoError(s.form.Back())
	s.Require().NoError(s.form.Next(janeDoe()))

	loc, ok := s.form.State().(LocationStep)
	s.Require().True(ok)
	s.Nil(loc.Sample)
	s.Nil(loc.Draft.Location.Latitude)
}

func (s *FormSuite) TestBackFromIdentityIsRejected() {
	s.ErrorIs(s.form.Back(), ErrInvalidTransition)
}

func (s *FormSuite) TestSkipSubmitsWithoutLocation() {
	s.Require().NoError(s.form.Next(janeDoe()))
	_, err := s.form.UseMyLocation(context.Background())
	s.Require().NoError(err)

	rec, err := s.form.Skip(context.Background())
	s.Require().NoError(err)
	s.Nil(rec.Latitude)
	s.Nil(rec.Longitude)

	payload := s.submitter.last()
	s.Nil(payload.Latitude)
	s.Nil(payload.Longitude)
	s.Equal(int32(1), s.submitter.calls.Load())
}

func (s *FormSuite) TestCompleteMergesStepsAndDeviceInfo() {
	s.Require().NoError(s.form.Next(janeDoe()))
	sample, err := s.form.UseMyLocation(context.Background())
	s.Require().NoError(err)
	s.False(sample.LowConfidence())

	rec, err := s.form.Complete(context.Background())
	s.Require().NoError(err)
	s.Equal("Jane Doe", rec.Name)
	s.Equal("jane@x.com", rec.Email)

	payload := s.submitter.last()
	s.Equal("Jane Doe", *payload.FullName)
	s.Equal("1234567890", *payload.PhoneNumber)
	s.Equal("Secret1!", *payload.Password)
	s.Require().NotNil(payload.Latitude)
	s.Equal(6.5244, *payload.Latitude)

	var info dto.DeviceInfo
	s.Require().NoError(json.Unmarshal(payload.DeviceInfo, &info))
	s.Equal(device.TypeMobile, info.DeviceType)
	s.Equal("390x844", info.ScreenResolution)
	s.Equal("2026-10-19T12:00:00Z", info.Timestamp)

	succeeded, ok := s.form.State().(Succeeded)
	s.Require().True(ok)
	s.Equal("uid-1", succeeded.Record.UID)
	s.Equal(100, s.form.Progress())

	s.Require().NoError(s.form.Acknowledge())
	st, ok := s.form.State().(IdentityStep)
	s.Require().True(ok)
	s.Equal(Draft{}, st.Draft)
}

func (s *FormSuite) TestPayloadIsACopy() {
	lat := 1.5
	d := Draft{Identity: janeDoe()}.WithLocation(Location{Latitude: &lat})
	p, err := d.Payload(dto.DeviceInfo{})
	s.Require().NoError(err)

	*p.Latitude = 99
	s.Equal(1.5, *d.Location.Latitude)
}

func (s *FormSuite) TestFailureKeepsDraftForRetry() {
	s.submitter.err = errors.New("network down")
	s.Require().NoError(s.form.Next(janeDoe()))

	_, err := s.form.Skip(context.Background())
	s.Require().Error(err)

	failed, ok := s.form.State().(Failed)
	s.Require().True(ok)
	s.Equal(janeDoe(), failed.Draft.Identity)
	s.EqualError(failed.Err, "network down")
	s.Equal(int32(1), s.submitter.calls.Load(), "no automatic retry")

	s.Require().NoError(s.form.Retry())
	st, ok := s.form.State().(LocationStep)
	s.Require().True(ok)
	s.Equal(janeDoe(), st.Draft.Identity)

	s.submitter.err = nil
	_, err = s.form.Skip(context.Background())
	s.Require().NoError(err)
	s.Equal(int32(2), s.submitter.calls.Load())
}

func (s *FormSuite) TestOneSubmissionWhileInFlight() {
	s.submitter.release = make(chan struct{})
	s.submitter.started = make(chan struct{})
	s.Require().NoError(s.form.Next(janeDoe()))

	done := make(chan error, 1)
	go func() {
		_, err := s.form.Complete(context.Background())
		done <- err
	}()
	<-s.submitter.started
	s.IsType(Submitting{}, s.form.State())

	var wg sync.WaitGroup
	var rejected atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.form.Complete(context.Background()); errors.Is(err, ErrSubmissionInFlight) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()
	close(s.submitter.release)

	s.NoError(<-done)
	s.Equal(int32(10), rejected.Load())
	s.Equal(int32(1), s.submitter.calls.Load())
}

func (s *FormSuite) TestLocationFailureDegradesToSkip() {
	f := s.newForm(device.StaticLocationProvider{})
	s.Require().NoError(f.Next(janeDoe()))

	_, err := f.UseMyLocation(context.Background())
	var locErr *device.LocationError
	s.Require().ErrorAs(err, &locErr)

	st, ok := f.State().(LocationStep)
	s.Require().True(ok)
	s.False(st.Locating)
	s.Error(st.LocationErr)
	s.Nil(st.Sample)

	rec, err := f.Skip(context.Background())
	s.Require().NoError(err)
	s.Nil(rec.Latitude)
}

func (s *FormSuite) TestLowConfidenceSampleStillSubmits() {
	f := s.newForm(device.StaticLocationProvider{
		Sample: &device.LocationSample{Latitude: 1, Longitude: 2, AccuracyMeters: 250},
	})
	s.Require().NoError(f.Next(janeDoe()))

	sample, err := f.UseMyLocation(context.Background())
	s.Require().NoError(err)
	s.True(sample.LowConfidence())

	_, err = f.Complete(context.Background())
	s.NoError(err)
}

type slowLocator struct {
	started chan struct{}
	release chan struct{}
}

func (l slowLocator) CurrentPosition(ctx context.Context, _ device.PositionOptions) (device.LocationSample, error) {
	close(l.started)
	select {
	case <-l.release:
		return device.LocationSample{Latitude: 1, Longitude: 1, AccuracyMeters: 1}, nil
	case <-ctx.Done():
		return device.LocationSample{}, ctx.Err()
	}
}

func (s *FormSuite) TestSubmissionBlockedWhileLocating() {
	loc := slowLocator{started: make(chan struct{}), release: make(chan struct{})}
	f := s.newForm(loc)
	s.Require().NoError(f.Next(janeDoe()))

	done := make(chan error, 1)
	go func() {
		_, err := f.UseMyLocation(context.Background())
		done <- err
	}()
	<-loc.started

	_, err := f.Skip(context.Background())
	s.ErrorIs(err, ErrLocating)
	s.ErrorIs(f.Back(), ErrLocating)
	_, err = f.UseMyLocation(context.Background())
	s.ErrorIs(err, ErrLocating)

	close(loc.release)
	s.NoError(<-done)
	s.Equal(int32(0), s.submitter.calls.Load())
}

func (s *FormSuite) TestTransitionsOutOfOrder() {
	_, err := s.form.Skip(context.Background())
	s.ErrorIs(err, ErrInvalidTransition)
	_, err = s.form.UseMyLocation(context.Background())
	s.ErrorIs(err, ErrInvalidTransition)
	s.ErrorIs(s.form.Retry(), ErrInvalidTransition)
	s.ErrorIs(s.form.Acknowledge(), ErrInvalidTransition)

	s.Require().NoError(s.form.Next(janeDoe()))
	s.ErrorIs(s.form.Next(janeDoe()), ErrInvalidTransition)
}
