package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customer is one completed registration. Password holds the submitted value
// verbatim by default; with PASSWORD_STORAGE=bcrypt it holds a bcrypt hash.
type Customer struct {
	UID        string         `gorm:"column:uid;type:text;primaryKey" json:"uid"`
	Name       string         `gorm:"type:text;not null" json:"name"`
	Email      string         `gorm:"type:text;not null" json:"email"`
	Password   string         `gorm:"type:text;not null" json:"password"`
	Phone      string         `gorm:"type:text;not null" json:"phone"`
	Gender     string         `gorm:"type:text;not null" json:"gender"`
	DOB        string         `gorm:"column:dob;type:text;not null" json:"dob"`
	Address    string         `gorm:"type:text;not null" json:"address"`
	Latitude   *float64       `gorm:"type:real" json:"latitude"`
	Longitude  *float64       `gorm:"type:real" json:"longitude"`
	DeviceInfo datatypes.JSON `gorm:"column:deviceinfo;type:jsonb;default:'{}'" json:"deviceinfo"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:now();autoCreateTime:false" json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}
