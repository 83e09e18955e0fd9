package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var ErrStorage = errors.New("failed to store customer")

// MissingFieldsError lists NOT NULL columns whose request fields were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

type RegistrationService struct {
	store     CustomerStore
	passwords PasswordEncoder
	metrics   *metrics.Metrics
	newUID    func() string
}

type Option func(*RegistrationService)

func WithPasswordEncoder(p PasswordEncoder) Option {
	return func(s *RegistrationService) { s.passwords = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RegistrationService) { s.metrics = m }
}

func WithUIDGenerator(fn func() string) Option {
	return func(s *RegistrationService) { s.newUID = fn }
}

func NewRegistrationService(store CustomerStore, opts ...Option) *RegistrationService {
	s := &RegistrationService{
		store:     store,
		passwords: PlaintextPasswords{},
		newUID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register builds a customer from req and inserts it once. Field values are
// copied verbatim; there is no duplicate-email check, so repeated submissions
// create independent rows.
func (s *RegistrationService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.Customer, error) {
	if missing := missingFields(req); len(missing) > 0 {
		s.metrics.ObserveRegistration(metrics.OutcomeInvalid)
		return nil, &MissingFieldsError{Fields: missing}
	}

	password, err := s.passwords.Encode(*req.Password)
	if err != nil {
		s.metrics.ObserveRegistration(metrics.OutcomeFailed)
		return nil, err
	}

	customer := &models.Customer{
		UID:        s.newUID(),
		Name:       *req.FullName,
		Email:      *req.Email,
		Password:   password,
		Phone:      *req.PhoneNumber,
		Gender:     *req.Gender,
		DOB:        *req.DateOfBirth,
		Address:    *req.Address,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		DeviceInfo: deviceInfoJSON(req.DeviceInfo),
	}

	start := time.Now()
	err = s.store.Insert(ctx, customer)
	s.metrics.ObserveInsert(time.Since(start))
	if err != nil {
		s.metrics.ObserveRegistration(metrics.OutcomeFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.metrics.ObserveRegistration(metrics.OutcomeCreated)
	return customer, nil
}

// ToRecord converts a stored customer into its wire form.
func ToRecord(c *models.Customer) dto.CustomerRecord {
	return dto.CustomerRecord{
		UID:        c.UID,
		Name:       c.Name,
		Email:      c.Email,
		Password:   c.Password,
		Phone:      c.Phone,
		Gender:     c.Gender,
		DOB:        c.DOB,
		Address:    c.Address,
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
		DeviceInfo: json.RawMessage(c.DeviceInfo),
		CreatedAt:  c.CreatedAt,
	}
}

func missingFields(req *dto.RegisterRequest) []string {
	required := []struct {
		name  string
		value *string
	}{
		{"fullName", req.FullName},
		{"email", req.Email},
		{"password", req.Password},
		{"phoneNumber", req.PhoneNumber},
		{"gender", req.Gender},
		{"dateOfBirth", req.DateOfBirth},
		{"address", req.Address},
	}

	var missing []string
	for _, f := range required {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// deviceInfoJSON keeps the submitted object as-is; absent or null becomes {}.
func deviceInfoJSON(raw json.RawMessage) datatypes.JSON {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(trimmed)
}
