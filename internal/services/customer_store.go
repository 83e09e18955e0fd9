package services

//go:generate mockgen -source=customer_store.go -destination=mocks/mock_customer_store.go -package=mocks CustomerStore

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerStore persists registrations. Insert must write exactly one row and
// fill c with the row as stored, including database defaults.
type CustomerStore interface {
	Insert(ctx context.Context, c *models.Customer) error
}

type GormCustomerStore struct {
	db *gorm.DB
}

func NewCustomerStore(db *gorm.DB) *GormCustomerStore {
	return &GormCustomerStore{db: db}
}

// Insert runs a single INSERT ... RETURNING * against customers.
func (s *GormCustomerStore) Insert(ctx context.Context, c *models.Customer) error {
	if err := s.db.WithContext(ctx).Clauses(clause.Returning{}).Create(c).Error; err != nil {
		return fmt.Errorf("insert customer %s: %w", c.UID, err)
	}
	return nil
}
