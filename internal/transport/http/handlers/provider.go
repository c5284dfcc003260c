package http_handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/pkg/reqctx"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/response"
)

type ProviderService interface {
	CheckAuth(ctx context.Context, claimed, loginType string, params map[string]string) (*provider.AuthResult, error)
	SupportedLoginTypes() map[string][]string
}

type ProviderHandler struct {
	svc ProviderService
	log zerolog.Logger
}

func NewProviderHandler(svc ProviderService, lg zerolog.Logger) *ProviderHandler {
	return &ProviderHandler{
		svc: svc,
		log: lg.With().Str("component", "provider_handler").Logger(),
	}
}

// LoginTypes handles GET /auth/v1/login/types
func (h *ProviderHandler) LoginTypes(w http.ResponseWriter, r *http.Request) {
	response.OK(w, dto.NewLoginTypesResponse(h.svc.SupportedLoginTypes()))
}

// Check handles POST /auth/v1/check
func (h *ProviderHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckAuthRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.CheckAuth(r.Context(), req.UserID, req.LoginType, req.Parameters)
	if err != nil {
		l := reqctx.Logger(r.Context(), h.log)
		l.Debug().Err(err).Str("claimed_user", req.UserID).Msg("check-auth rejected")
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.CheckAuthResponse{
		Success: true,
		UserID:  res.UserID,
	})
}
