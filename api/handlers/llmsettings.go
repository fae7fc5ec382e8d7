package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vertexsales/salesbot/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔀 LLM 提供商切换 Handler
// =============================================================================

// LLMSettingsHandler exposes runtime LLM provider activation backed by
// sb_llm_settings, so an operator can flip the active provider without a
// restart.
type LLMSettingsHandler struct {
	activate func(ctx context.Context, providerID string) error
	logger   *zap.Logger
}

// NewLLMSettingsHandler wires activate (typically app.App.ActivateProvider).
func NewLLMSettingsHandler(activate func(ctx context.Context, providerID string) error, logger *zap.Logger) *LLMSettingsHandler {
	return &LLMSettingsHandler{activate: activate, logger: logger}
}

type activateProviderRequest struct {
	ProviderID string `json:"provider_id"`
}

// HandleActivate handles POST /v1/llm/provider/activate.
func (h *LLMSettingsHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "method not allowed",
			HTTPStatus: http.StatusMethodNotAllowed,
		}, h.logger)
		return
	}

	var req activateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "invalid request body",
			HTTPStatus: http.StatusBadRequest,
			Cause:      err,
		}, h.logger)
		return
	}
	if req.ProviderID == "" {
		WriteError(w, &types.Error{
			Code:       types.ErrValidation,
			Message:    "provider_id is required",
			HTTPStatus: http.StatusBadRequest,
		}, h.logger)
		return
	}

	if err := h.activate(r.Context(), req.ProviderID); err != nil {
		WriteError(w, &types.Error{
			Code:       types.ErrInternalError,
			Message:    "failed to activate provider",
			HTTPStatus: http.StatusInternalServerError,
			Cause:      err,
		}, h.logger)
		return
	}

	WriteSuccess(w, map[string]string{"active_provider": req.ProviderID})
}
