package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// CatalogVersionRepository persists types.CatalogVersion rows and owns the
// atomic building -> active transition.
type CatalogVersionRepository struct {
	db *gorm.DB
}

// NewCatalogVersionRepository returns a CatalogVersionRepository bound to db.
func NewCatalogVersionRepository(db *gorm.DB) *CatalogVersionRepository {
	return &CatalogVersionRepository{db: db}
}

// StartBuild creates a new CatalogVersion row in the building state.
func (r *CatalogVersionRepository) StartBuild(ctx context.Context, versionName string) (*types.CatalogVersion, error) {
	v := types.CatalogVersion{
		VersionName: versionName,
		Status:      types.CatalogBuilding,
		CreatedAt:   time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&v).Error; err != nil {
		return nil, fmt.Errorf("start catalog build %s: %w", versionName, err)
	}
	return &v, nil
}

// MarkFailed flips a building CatalogVersion to failed.
func (r *CatalogVersionRepository) MarkFailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&types.CatalogVersion{}).
		Where("id = ?", id).
		Update("status", types.CatalogFailed).Error
}

// Activate performs the blue-green swap: the given building version becomes
// active, the previously active version (if any) becomes superseded. Both
// updates happen in one transaction so readers never observe zero or two
// active versions.
func (r *CatalogVersionRepository) Activate(ctx context.Context, id uint, indexedRows int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if err := tx.Model(&types.CatalogVersion{}).
			Where("status = ?", types.CatalogActive).
			Updates(map[string]any{"status": types.CatalogSuperseded}).Error; err != nil {
			return fmt.Errorf("supersede previous active version: %w", err)
		}

		res := tx.Model(&types.CatalogVersion{}).
			Where("id = ? AND status = ?", id, types.CatalogBuilding).
			Updates(map[string]any{
				"status":       types.CatalogActive,
				"activated_at": now,
				"indexed_rows": indexedRows,
			})
		if res.Error != nil {
			return fmt.Errorf("activate catalog version %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("activate catalog version %d: not in building state", id)
		}
		return nil
	})
}

// Active returns the currently active CatalogVersion, or
// gorm.ErrRecordNotFound if none has ever been activated.
func (r *CatalogVersionRepository) Active(ctx context.Context) (*types.CatalogVersion, error) {
	var v types.CatalogVersion
	if err := r.db.WithContext(ctx).Where("status = ?", types.CatalogActive).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// Superseded returns versions eligible for garbage collection: superseded
// or failed builds whose CreatedAt is older than olderThan.
func (r *CatalogVersionRepository) Superseded(ctx context.Context, olderThan time.Time) ([]*types.CatalogVersion, error) {
	var versions []*types.CatalogVersion
	err := r.db.WithContext(ctx).
		Where("status IN ?", []types.CatalogVersionStatus{types.CatalogSuperseded, types.CatalogFailed}).
		Where("created_at < ?", olderThan).
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("list superseded catalog versions: %w", err)
	}
	return versions, nil
}

// Delete removes a CatalogVersion row after its on-disk directory has been
// garbage collected.
func (r *CatalogVersionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&types.CatalogVersion{}, id).Error
}

// ProductRepository persists types.Product rows.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository returns a ProductRepository bound to db.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// InsertBatch bulk-inserts product rows for one catalog version.
func (r *ProductRepository) InsertBatch(ctx context.Context, products []*types.Product) error {
	if len(products) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(products, 200).Error; err != nil {
		return fmt.Errorf("insert product batch: %w", err)
	}
	return nil
}

// FindByArticle looks up a product by exact article within a catalog version.
func (r *ProductRepository) FindByArticle(ctx context.Context, catalogVersion, article string) (*types.Product, error) {
	var p types.Product
	err := r.db.WithContext(ctx).
		Where("catalog_version = ? AND article = ?", catalogVersion, article).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by article %s: %w", article, err)
	}
	return &p, nil
}

// DeleteByVersion removes every product row belonging to a catalog version,
// used when garbage collecting superseded builds.
func (r *ProductRepository) DeleteByVersion(ctx context.Context, catalogVersion string) error {
	return r.db.WithContext(ctx).
		Where("catalog_version = ?", catalogVersion).
		Delete(&types.Product{}).Error
}
