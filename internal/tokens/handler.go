package tokens

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
)

type Handler struct {
	verifier *Verifier
	logger   *slog.Logger
}

func NewHandler(verifier *Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		logger:   logger,
	}
}

type createTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	token, err := h.verifier.Issue(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, token)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	token, err := h.verifier.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, token)
}

type extendTokenRequest struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	var req extendTokenRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if !req.Extend {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindInvalidRequest, "extend must be true"))
		return
	}

	token, err := h.verifier.Extend(r.Context(), req.ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("token extended", "email", token.Email)
	respond.JSON(w, h.logger, http.StatusOK, token)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.verifier.Revoke(r.Context(), r.URL.Query().Get("id")); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
