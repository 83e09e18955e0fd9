package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/client"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/device"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/form"
)

type scriptedSubmitter struct {
	errs     []error
	requests []dto.RegisterRequest
}

func (s *scriptedSubmitter) Register(_ context.Context, req dto.RegisterRequest) (*dto.CustomerRecord, error) {
	s.requests = append(s.requests, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &dto.CustomerRecord{UID: "u-1", Name: *req.FullName, Email: *req.Email}, nil
}

func newRunner(sub form.Submitter, locator device.LocationProvider, input ...string) (*runner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	f := form.New(sub, device.StaticEnvironment{UserAgent: "test"}, locator)
	return &runner{
		form: f,
		in:   bufio.NewReader(strings.NewReader(strings.Join(input, "\n") + "\n")),
		out:  out,
	}, out
}

var janeLines = []string{"Jane Doe", "jane@x.com", "1234567890", "Female", "1990-01-01", "1 Main St", "Secret1!", "Secret1!"}

func TestRunSkipLocation(t *testing.T) {
	sub := &scriptedSubmitter{}
	r, out := newRunner(sub, nil, append(janeLines, "s", "n")...)

	err := r.run(context.Background())
	assert.ErrorIs(t, err, errQuit)

	require.Len(t, sub.requests, 1)
	assert.Nil(t, sub.requests[0].Latitude)
	assert.Contains(t, out.String(), "strength: strong")
	assert.Contains(t, out.String(), "Registration successful")
	assert.Contains(t, out.String(), "Email: jane@x.com")
	assert.Contains(t, out.String(), "[100%]")
}

func TestRunCorrectsValidationErrors(t *testing.T) {
	bad := append([]string{}, janeLines...)
	bad[2] = "123"
	// second pass keeps every previous answer except the phone number
	fix := []string{"", "", "1234567890", "", "", "", "", ""}

	input := append(bad, fix...)
	input = append(input, "c", "n")

	sub := &scriptedSubmitter{}
	r, out := newRunner(sub, nil, input...)
	assert.ErrorIs(t, r.run(context.Background()), errQuit)

	assert.Contains(t, out.String(), "phoneNumber: Phone Number must be exactly 10 digits")
	require.Len(t, sub.requests, 1)
	assert.Equal(t, "1234567890", *sub.requests[0].PhoneNumber)
	assert.Equal(t, "Secret1!", *sub.requests[0].Password)
}

func TestRunLocateThenRetryAfterFailure(t *testing.T) {
	locator := device.StaticLocationProvider{
		Sample: &device.LocationSample{Latitude: 6.5244, Longitude: 3.3792, AccuracyMeters: 250},
	}
	sub := &scriptedSubmitter{errs: []error{&client.StatusError{Code: 500}, nil}}
	r, out := newRunner(sub, locator, append(janeLines, "l", "c", "r", "c", "n")...)

	assert.ErrorIs(t, r.run(context.Background()), errQuit)

	assert.Contains(t, out.String(), "accuracy is low")
	assert.Contains(t, out.String(), "openstreetmap.org")
	assert.Contains(t, out.String(), "Registration failed. Please try again.")
	require.Len(t, sub.requests, 2)
	for _, req := range sub.requests {
		require.NotNil(t, req.Latitude)
		assert.InDelta(t, 6.5244, *req.Latitude, 1e-9)
	}
}

func TestRunLocationUnavailable(t *testing.T) {
	sub := &scriptedSubmitter{}
	r, out := newRunner(sub, device.StaticLocationProvider{}, append(janeLines, "l", "q")...)

	assert.ErrorIs(t, r.run(context.Background()), errQuit)
	assert.Contains(t, out.String(), "could not get your location")
	assert.Empty(t, sub.requests)
}

func TestRunEndOfInput(t *testing.T) {
	r, _ := newRunner(&scriptedSubmitter{}, nil, "Jane Doe")
	err := r.run(context.Background())
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)
}

func TestRunReadsPasswordsWithoutEcho(t *testing.T) {
	sub := &scriptedSubmitter{}
	visible := append(append([]string{}, janeLines[:6]...), "s", "n")
	r, out := newRunner(sub, nil, visible...)

	var secretReads int
	r.readSecret = func() (string, error) {
		secretReads++
		return "Hidden1!", nil
	}

	assert.ErrorIs(t, r.run(context.Background()), errQuit)
	assert.Equal(t, 2, secretReads)
	require.Len(t, sub.requests, 1)
	assert.Equal(t, "Hidden1!", *sub.requests[0].Password)
	assert.NotContains(t, out.String(), "Hidden1!")
}
