// internal/services/import_service.go
package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
)

var importColumns = []string{"name", "description", "price", "stock", "category", "sku", "images"}

// ImportService bulk loads products from CSV.
type ImportService struct {
	db         *gorm.DB
	categories *CategoryService
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int              `json:"created"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

func NewImportService(db *gorm.DB, categories *CategoryService) *ImportService {
	return &ImportService{db: db, categories: categories}
}

// ImportProducts reads a header row followed by one product per row. Rows are
// committed independently, so a bad row does not undo the good ones.
func (s *ImportService) ImportProducts(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV file", ErrInvalidUploadFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidUploadFile, err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			result.fail(row, err.Error())
			continue
		}
		if isBlank(record) {
			continue
		}

		if err := s.importRow(ctx, index, record); err != nil {
			result.fail(row, err.Error())
			continue
		}
		result.Created++
	}

	logrus.WithFields(logrus.Fields{
		"created": result.Created,
		"failed":  result.Failed,
	}).Info("Product import finished")
	return result, nil
}

func (s *ImportService) importRow(ctx context.Context, index map[string]int, record []string) error {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field("name")
	if name == "" {
		return errors.New("name is required")
	}

	price, err := decimal.NewFromString(field("price"))
	if err != nil {
		return fmt.Errorf("invalid price %q", field("price"))
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}

	stock := 0
	if raw := field("stock"); raw != "" {
		stock, err = strconv.Atoi(raw)
		if err != nil || stock < 0 {
			return fmt.Errorf("invalid stock %q", raw)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product := &models.Product{
			Name:        name,
			Description: field("description"),
			Price:       price.Round(2),
			Stock:       stock,
			Status:      models.ProductStatusActive,
		}

		if categoryName := field("category"); categoryName != "" {
			category, err := s.categories.FindOrCreate(ctx, tx, categoryName)
			if err != nil {
				return err
			}
			product.CategoryID = &category.ID
		}

		if sku := field("sku"); sku != "" {
			product.Variants = []models.Variant{{
				SKU:        sku,
				Attributes: models.Attributes{"sku": sku},
				Stock:      stock,
			}}
		}

		position := 0
		for _, url := range strings.Split(field("images"), ";") {
			if url = strings.TrimSpace(url); url == "" {
				continue
			}
			product.Images = append(product.Images, models.ProductImage{URL: url, Position: position})
			position++
		}

		if err := tx.Create(product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	})
}

func (r *ImportResult) fail(row int, message string) {
	r.Failed++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Message: message})
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")))] = i
	}

	for _, required := range []string{"name", "price"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column (expected %s)", ErrInvalidUploadFile, required, strings.Join(importColumns, ","))
		}
	}
	return index, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
