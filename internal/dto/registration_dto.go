package dto

import (
	"encoding/json"
	"time"
)

// DeviceInfo describes the browser or terminal that submitted a registration.
type DeviceInfo struct {
	UserAgent        string `json:"userAgent"`
	Platform         string `json:"platform"`
	BrowserLanguage  string `json:"browserLanguage"`
	DeviceType       string `json:"deviceType"`
	ScreenResolution string `json:"screenResolution"`
	Timestamp        string `json:"timestamp"`
}

// RegisterRequest is the merged payload of both form steps plus device info.
// Required fields are pointers so an absent key can be told apart from an
// empty string.
type RegisterRequest struct {
	FullName    *string         `json:"fullName"`
	Email       *string         `json:"email"`
	Password    *string         `json:"password"`
	PhoneNumber *string         `json:"phoneNumber"`
	Gender      *string         `json:"gender"`
	DateOfBirth *string         `json:"dateOfBirth"`
	Address     *string         `json:"address"`
	Latitude    *float64        `json:"latitude,omitempty"`
	Longitude   *float64        `json:"longitude,omitempty"`
	DeviceInfo  json.RawMessage `json:"deviceInfo,omitempty"`
}

// CustomerRecord is a customers row as returned to the client.
type CustomerRecord struct {
	UID        string          `json:"uid"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Phone      string          `json:"phone"`
	Gender     string          `json:"gender"`
	DOB        string          `json:"dob"`
	Address    string          `json:"address"`
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
	DeviceInfo json.RawMessage `json:"deviceinfo"`
	CreatedAt  time.Time       `json:"created_at"`
}

type RegisterResponse struct {
	Status bool           `json:"status"`
	Record CustomerRecord `json:"record"`
}

type ErrorResponse struct {
	Status  bool              `json:"status"`
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

// StringPtr is a helper for building RegisterRequest values.
func StringPtr(s string) *string {
	return &s
}
