// Package store implements the GORM-backed persistence layer: one
// repository type per domain entity in types/, plus AutoMigrate wiring
// grounded on the teacher's llm.InitDatabase pattern.
package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/vertexsales/salesbot/types"
)

// AutoMigrate creates/updates every sales-bot domain table. Mirrors
// llm.InitDatabase's single AutoMigrate call covering the whole schema.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.User{},
		&types.Conversation{},
		&types.ConversationMessage{},
		&types.CatalogVersion{},
		&types.Product{},
		&types.CompanyService{},
		&types.CompanyInfo{},
		&types.Lead{},
		&types.Prompt{},
		&types.LLMSetting{},
		&types.UsageRecord{},
		&types.SystemLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate domain schema: %w", err)
	}
	return nil
}
