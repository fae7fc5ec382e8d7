// Package prompts implements the named, versioned prompt registry (C1): an
// in-process cache over store.PromptRepository with Go-compiled defaults
// seeded on first boot.
package prompts

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/store"
)

// Name identifies one of the registry's prompt slots.
type Name string

const (
	ProductSearch      Name = "product_search"
	ServiceAnswer      Name = "service_answer"
	CompanyInfo        Name = "company_info"
	LeadQualification  Name = "lead_qualification"
	GeneralConversation Name = "general_conversation"
)

// defaults are the seed contents compiled into the binary, inserted on
// first boot when a name has no row yet.
var defaults = map[Name]string{
	ProductSearch: "You are a sales assistant. Given the customer's message and the " +
		"retrieved product candidates below, recommend the best matches and explain " +
		"briefly why each fits. If nothing fits well, say so plainly.",
	ServiceAnswer: "You are a sales assistant answering a question about one of the " +
		"company's services. Use only the service description provided below.",
	CompanyInfo: "You are a sales assistant answering a general question about the " +
		"company. Use only the company information document provided below.",
	LeadQualification: "You are a sales assistant collecting contact details from a " +
		"customer who wants to be contacted by a manager. Ask only for what is " +
		"missing: last name and at least one of phone or email.",
	GeneralConversation: "You are a friendly sales assistant. Respond helpfully and " +
		"steer the conversation toward how the company's products or services can help.",
}

// Registry is the in-process cache of active prompt content, keyed by name.
// It is safe for concurrent use.
type Registry struct {
	prompts *store.PromptRepository
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[Name]string
}

// NewRegistry returns a Registry backed by repo. Call Reload once during
// startup to seed defaults and populate the cache.
func NewRegistry(repo *store.PromptRepository, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		prompts: repo,
		logger:  logger,
		cache:   make(map[Name]string),
	}
}

// Reload seeds any missing defaults and refreshes the in-process cache
// wholesale from the store.
func (r *Registry) Reload(ctx context.Context) error {
	for name, content := range defaults {
		if err := r.prompts.SeedIfMissing(ctx, string(name), content, "system"); err != nil {
			return fmt.Errorf("seed prompt %s: %w", name, err)
		}
	}

	all, err := r.prompts.All(ctx)
	if err != nil {
		return fmt.Errorf("load active prompts: %w", err)
	}

	fresh := make(map[Name]string, len(all))
	for _, p := range all {
		fresh[Name(p.Name)] = p.Content
	}

	r.mu.Lock()
	r.cache = fresh
	r.mu.Unlock()

	r.logger.Info("prompt registry reloaded", zap.Int("count", len(fresh)))
	return nil
}

// Get returns the active content for name. Falls back to the compiled-in
// default if the cache has not been populated yet (e.g. Reload failed and
// the process chose to continue serving degraded).
func (r *Registry) Get(name Name) string {
	r.mu.RLock()
	content, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return content
	}
	return defaults[name]
}

// Put creates a new active version of name, persists it, and invalidates
// the cache entry.
func (r *Registry) Put(ctx context.Context, name Name, content, role string) error {
	p, err := r.prompts.PutNewVersion(ctx, string(name), content, role)
	if err != nil {
		return fmt.Errorf("put prompt %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = p.Content
	r.mu.Unlock()
	return nil
}
