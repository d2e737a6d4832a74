package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/application/session"
	"github.com/aurachatapp/aurachat-premium/internal/transport/http/middleware"
)

// MeHandler reports the caller's identity and live premium status.
type MeHandler struct {
	svc session.Service
	log *zap.Logger
}

func NewMeHandler(svc session.Service, log *zap.Logger) *MeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MeHandler{svc: svc, log: log}
}

func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetSession(r.Context(), middleware.BearerToken(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MeEnvelope{Email: info.Email, Premium: info.Premium})
}
