// internal/services/address_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

// AddressService manages saved shipping addresses. Each user has at most one
// default address, and exactly one once they have any.
type AddressService struct {
	db *gorm.DB
}

type AddressRequest struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,len=2"`
	IsDefault  bool   `json:"is_default"`
}

func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// ListAddresses returns the default address first.
func (s *AddressService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default desc, created_at desc").
		Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch addresses: %w", err)
	}
	return addresses, nil
}

func (s *AddressService) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	return s.findAddress(s.db.WithContext(ctx), userID, addressID)
}

func (s *AddressService) CreateAddress(ctx context.Context, userID uuid.UUID, req *AddressRequest) (*models.Address, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	address := &models.Address{UserID: userID}
	applyAddress(address, req)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		address.IsDefault = req.IsDefault || count == 0

		if address.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		if err := tx.Create(address).Error; err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return address, nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, req *AddressRequest) (*models.Address, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var address *models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		address, err = s.findAddress(tx, userID, addressID)
		if err != nil {
			return err
		}

		wasDefault := address.IsDefault
		applyAddress(address, req)
		// Unsetting the flag on the only default is ignored; use another
		// address's SetDefault instead.
		address.IsDefault = wasDefault || req.IsDefault

		if address.IsDefault && !wasDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		if err := tx.Save(address).Error; err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return address, nil
}

// DeleteAddress removes an address. When it was the default, the most recently
// created remaining address takes over.
func (s *AddressService) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := s.findAddress(tx, userID, addressID)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Delete(address).Error; err != nil {
			return fmt.Errorf("failed to delete address: %w", err)
		}

		if !address.IsDefault {
			return nil
		}

		var next models.Address
		err = tx.Where("user_id = ?", userID).Order("created_at desc").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func (s *AddressService) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	var address *models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		address, err = s.findAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		if address.IsDefault {
			return nil
		}

		if err := clearDefault(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(address).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set default address: %w", err)
		}
		address.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return address, nil
}

func (s *AddressService) findAddress(db *gorm.DB, userID, addressID uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := db.Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &address, nil
}

func clearDefault(tx *gorm.DB, userID uuid.UUID) error {
	if err := tx.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error; err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func applyAddress(address *models.Address, req *AddressRequest) {
	address.FullName = req.FullName
	address.Phone = req.Phone
	address.Line1 = req.Line1
	address.Line2 = req.Line2
	address.City = req.City
	address.State = req.State
	address.PostalCode = req.PostalCode
	address.Country = req.Country
}
