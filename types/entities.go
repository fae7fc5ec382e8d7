package types

import "time"

// =============================================================================
// User — platform-agnostic identity keyed by chat_id
// =============================================================================

// User identifies one end user across conversations and leads. chat_id (not
// the Telegram user id) is the stable handle the rest of the system keys on.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChatID      string    `gorm:"size:64;not null;uniqueIndex" json:"chat_id"`
	FirstName   string    `gorm:"size:200" json:"first_name"`
	LastName    string    `gorm:"size:200" json:"last_name"`
	Phone       string    `gorm:"size:32" json:"phone,omitempty"`
	Email       string    `gorm:"size:200" json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string { return "sb_users" }

// =============================================================================
// Conversation / ConversationMessage — append-only log scoped to a chat_id
// =============================================================================

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a conversation scoped to one chat_id. A user has at most
// one open conversation at a time.
type Conversation struct {
	ID       uint               `gorm:"primaryKey" json:"id"`
	ChatID   string             `gorm:"size:64;not null;index:idx_conv_chat_status" json:"chat_id"`
	Platform string             `gorm:"size:32;default:telegram" json:"platform"`
	Status   ConversationStatus `gorm:"size:16;default:open;index:idx_conv_chat_status" json:"status"`
	Metadata string             `gorm:"type:text" json:"metadata,omitempty"`

	// LastTriggeredAt is the inactivity watermark: the last time this
	// conversation was handed to the lead pipeline as an idle episode. Not
	// part of the public data model; kept private to the inactivity monitor
	// so the same episode is never auto-captured twice.
	LastTriggeredAt *time.Time `json:"-"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Conversation) TableName() string { return "sb_conversations" }

// MessageRole is the speaker of a ConversationMessage.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Intent is the classifier's label for a user turn, stamped onto the
// assistant reply that answered it.
type Intent string

const (
	IntentProduct     Intent = "PRODUCT"
	IntentService     Intent = "SERVICE"
	IntentCompanyInfo Intent = "COMPANY_INFO"
	IntentContact     Intent = "CONTACT"
	IntentGeneral     Intent = "GENERAL"
)

// ConversationMessage is one strictly append-only entry in a Conversation.
// Ordering within a conversation is total and monotonic by (ID, Timestamp).
type ConversationMessage struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ConversationID uint        `gorm:"not null;index:idx_msg_conv_time" json:"conversation_id"`
	Role           MessageRole `gorm:"size:16;not null" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	Intent         Intent      `gorm:"size:16" json:"intent,omitempty"`
	Metadata       string      `gorm:"type:text" json:"metadata,omitempty"`
	Timestamp      time.Time   `gorm:"index:idx_msg_conv_time" json:"timestamp"`
}

func (ConversationMessage) TableName() string { return "sb_messages" }

// =============================================================================
// Product / CatalogVersion — vector catalog engine's backing rows
// =============================================================================

// CatalogVersionStatus is the lifecycle state of a CatalogVersion.
type CatalogVersionStatus string

const (
	CatalogBuilding   CatalogVersionStatus = "building"
	CatalogActive     CatalogVersionStatus = "active"
	CatalogSuperseded CatalogVersionStatus = "superseded"
	CatalogFailed     CatalogVersionStatus = "failed"
)

// CatalogVersion tracks one blue-green build of the vector index. At most
// one row is ever Active; the building -> active transition displaces the
// previous active row to superseded in the same transaction.
type CatalogVersion struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	VersionName string               `gorm:"size:64;not null;uniqueIndex" json:"version_name"`
	Status      CatalogVersionStatus `gorm:"size:16;not null;index" json:"status"`
	TotalRows   int                  `json:"total_rows"`
	IndexedRows int                  `json:"indexed_rows"`
	CreatedAt   time.Time            `json:"created_at"`
	ActivatedAt *time.Time           `json:"activated_at,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (CatalogVersion) TableName() string { return "sb_catalog_versions" }

// Product is one catalog row. (ID, CatalogVersion) is unique: the same
// product id may appear once per catalog build.
type Product struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	ProductID      string `gorm:"size:100;not null;uniqueIndex:idx_product_version" json:"id"`
	CatalogVersion string `gorm:"size:64;not null;uniqueIndex:idx_product_version;index" json:"catalog_version"`
	ProductName    string `gorm:"size:500;not null" json:"product_name"`
	Category1      string `gorm:"size:200;not null" json:"category_1"`
	Category2      string `gorm:"size:200" json:"category_2,omitempty"`
	Category3      string `gorm:"size:200" json:"category_3,omitempty"`
	Article        string `gorm:"size:200;not null;index" json:"article"`
	Description    string `gorm:"type:text" json:"description,omitempty"`
	PhotoURL       string `gorm:"size:1000" json:"photo_url,omitempty"`
	PageURL        string `gorm:"size:1000" json:"page_url,omitempty"`
}

func (Product) TableName() string { return "sb_products" }

// =============================================================================
// CompanyService / CompanyInfo — C4's structured lookup surface
// =============================================================================

// CompanyService is one service offering, looked up by keyword or category.
// Never vectorized — the knowledge store does plain keyword matching.
type CompanyService struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:300;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:200;index" json:"category"`
	Keywords    string    `gorm:"type:text" json:"keywords"` // comma-separated
	Active      bool      `gorm:"default:true;index" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CompanyService) TableName() string { return "sb_company_services" }

// CompanyInfo is a singleton row holding the uploaded "about us" document
// served by C4.company_info(). ID is always 1.
type CompanyInfo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text" json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CompanyInfo) TableName() string { return "sb_company_info" }

// =============================================================================
// Lead — capture -> validate -> CRM delivery state
// =============================================================================

// LeadSource identifies the channel a lead's first contact came through.
type LeadSource string

const (
	LeadSourceTelegram LeadSource = "TG"
	LeadSourceSalesIQ  LeadSource = "SalesIQ Chat"
)

// LeadStatus is the CRM delivery state of a Lead.
type LeadStatus string

const (
	LeadPendingSync LeadStatus = "pending_sync"
	LeadSynced      LeadStatus = "synced"
	LeadFailed      LeadStatus = "failed"
)

// Lead is a captured prospect carrying delivery state toward the CRM.
// Invariants: at least one of Phone/Email present; LastName non-empty;
// SyncAttempts <= 2; Status == synced implies CRMID != "".
type Lead struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ChatID        string     `gorm:"size:64;not null;index" json:"chat_id"`
	LastName      string     `gorm:"size:200;not null" json:"last_name"`
	Phone         string     `gorm:"size:32" json:"phone,omitempty"`
	Email         string     `gorm:"size:200" json:"email,omitempty"`
	WhatsApp      string     `gorm:"size:32" json:"whatsapp,omitempty"`
	Company       string     `gorm:"size:300" json:"company,omitempty"`
	Question      string     `gorm:"type:text" json:"question,omitempty"`
	Source        LeadSource `gorm:"size:16;not null" json:"source"`
	Status        LeadStatus `gorm:"size:16;not null;index" json:"status"`
	SyncAttempts  int        `gorm:"default:0" json:"sync_attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CRMID         string     `gorm:"size:100" json:"crm_id,omitempty"`
	AutoCreated   bool       `gorm:"default:false" json:"auto_created"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Lead) TableName() string { return "sb_leads" }

// =============================================================================
// Prompt — versioned, hot-reloadable named templates
// =============================================================================

// Prompt is one version of a named prompt template. Exactly one version per
// Name carries Active == true; versions are monotonically increasing and
// immutable once superseded.
type Prompt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;index:idx_prompt_name_active" json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Version   int       `gorm:"not null" json:"version"`
	Active    bool      `gorm:"default:false;index:idx_prompt_name_active" json:"active"`
	Role      string    `gorm:"size:32;default:system" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prompt) TableName() string { return "sb_prompts" }

// =============================================================================
// LLMSetting — runtime-switchable provider selection
// =============================================================================

// LLMSetting records one configured provider. At most one row has
// IsActive == true at any time; the gateway reads the active row to decide
// which llm.Provider to route calls through.
type LLMSetting struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProviderID string    `gorm:"size:50;not null;uniqueIndex" json:"provider_id"`
	Config     string    `gorm:"type:text" json:"config"` // JSON blob
	IsActive   bool      `gorm:"default:false;index" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (LLMSetting) TableName() string { return "sb_llm_settings" }

// =============================================================================
// UsageRecord — monthly token/cost rollup consumed by Cost Guard
// =============================================================================

// UsageRecord is a monthly rollup of token usage per (Provider, Model). Only
// the rollup counters are mutable; the key tuple is immutable once created.
type UsageRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Provider     string    `gorm:"size:50;not null;uniqueIndex:idx_usage_period" json:"provider"`
	Model        string    `gorm:"size:100;not null;uniqueIndex:idx_usage_period" json:"model"`
	Year         int       `gorm:"not null;uniqueIndex:idx_usage_period" json:"year"`
	Month        int       `gorm:"not null;uniqueIndex:idx_usage_period" json:"month"`
	TotalTokens  int64     `gorm:"default:0" json:"total_tokens"`
	PricePer1K   float64   `gorm:"type:decimal(10,6);default:0" json:"price_per_1k"`
	Currency     string    `gorm:"size:8;default:USD" json:"currency"`
	AlertFired   bool      `gorm:"default:false" json:"alert_fired"`
	LimitExceeded bool     `gorm:"default:false" json:"limit_exceeded"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string { return "sb_usage_records" }

// =============================================================================
// SystemLog — durable sink for the Hybrid Logger's WARNING+ severities
// =============================================================================

// LogSeverity is the routing key the Hybrid Logger uses to pick a sink.
type LogSeverity string

const (
	LogSeverityDebug    LogSeverity = "DEBUG"
	LogSeverityInfo     LogSeverity = "INFO"
	LogSeverityWarning  LogSeverity = "WARNING"
	LogSeverityError    LogSeverity = "ERROR"
	LogSeverityCritical LogSeverity = "CRITICAL"
	LogSeverityBusiness LogSeverity = "BUSINESS"
)

// SystemLog is one durable log entry. Only WARNING and above (plus BUSINESS)
// reach this table; DEBUG/INFO stay in the console/file sink.
type SystemLog struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Severity  LogSeverity `gorm:"size:16;not null;index" json:"severity"`
	Component string      `gorm:"size:100;not null;index" json:"component"`
	Message   string      `gorm:"type:text;not null" json:"message"`
	Metadata  string      `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

func (SystemLog) TableName() string { return "sb_system_logs" }
