package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// CompanyServiceRepository persists types.CompanyService rows.
type CompanyServiceRepository struct {
	db *gorm.DB
}

// NewCompanyServiceRepository returns a CompanyServiceRepository bound to db.
func NewCompanyServiceRepository(db *gorm.DB) *CompanyServiceRepository {
	return &CompanyServiceRepository{db: db}
}

// Active returns every active service offering.
func (r *CompanyServiceRepository) Active(ctx context.Context) ([]*types.CompanyService, error) {
	var services []*types.CompanyService
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	return services, nil
}

// SearchByKeyword returns active services whose keyword list or category
// contains the given term, a plain case-insensitive substring match.
func (r *CompanyServiceRepository) SearchByKeyword(ctx context.Context, term string) ([]*types.CompanyService, error) {
	services, err := r.Active(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}

	var matches []*types.CompanyService
	for _, s := range services {
		if strings.Contains(strings.ToLower(s.Keywords), term) ||
			strings.Contains(strings.ToLower(s.Category), term) ||
			strings.Contains(strings.ToLower(s.Title), term) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// CompanyInfoRepository persists the singleton types.CompanyInfo row.
type CompanyInfoRepository struct {
	db *gorm.DB
}

// NewCompanyInfoRepository returns a CompanyInfoRepository bound to db.
func NewCompanyInfoRepository(db *gorm.DB) *CompanyInfoRepository {
	return &CompanyInfoRepository{db: db}
}

// Get returns the company info document, or an empty string if none has
// been uploaded yet.
func (r *CompanyInfoRepository) Get(ctx context.Context) (string, error) {
	var info types.CompanyInfo
	err := r.db.WithContext(ctx).First(&info, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load company info: %w", err)
	}
	return info.Content, nil
}

// Set upserts the singleton company info document.
func (r *CompanyInfoRepository) Set(ctx context.Context, content string) error {
	info := types.CompanyInfo{ID: 1, Content: content, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Save(&info).Error
}
