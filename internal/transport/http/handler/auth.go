package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/application/auth"
)

// AuthHandler handles the email code login flow.
type AuthHandler struct {
	svc auth.Service
	log *zap.Logger
}

func NewAuthHandler(svc auth.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, log: log}
}

type startRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email        string `json:"email"`
	Code         string `json:"code"`
	Token        string `json:"token"`
	PendingToken string `json:"pendingToken"`
}

// proof returns whichever of the two aliases the client sent.
func (v verifyRequest) proof() string {
	if v.Token != "" {
		return v.Token
	}
	return v.PendingToken
}

func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	res, err := h.svc.RequestCode(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeEnvelope{
		OK:           true,
		Token:        res.Proof,
		PendingToken: res.Proof,
		ExpiresAt:    res.ExpiresAt,
		Code:         res.DebugCode,
	})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	res, err := h.svc.VerifyCode(r.Context(), auth.VerifyRequest{
		Email: req.Email,
		Code:  req.Code,
		Proof: req.proof(),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Token:   res.Session.Token,
		Session: res.Session.Token,
		Premium: res.Premium,
	})
}
