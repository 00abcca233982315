package users

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

type Handler struct {
	ledger *Ledger
	logger *slog.Logger
}

func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		logger: logger,
	}
}

type createUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	TOSAgreement bool   `json:"tosAgreement"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	user, err := h.ledger.Create(r.Context(), CreateParams(req))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, user.Public())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := authorize(r, email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	user, err := h.ledger.Get(r.Context(), email)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, user.Public())
}

type updateUserRequest struct {
	Email    string  `json:"email"`
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if err := authorize(r, req.Email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	user, err := h.ledger.Update(r.Context(), req.Email, UpdateParams{
		Name:     req.Name,
		Address:  req.Address,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("user updated", "email", user.Email)
	respond.JSON(w, h.logger, http.StatusOK, user.Public())
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := authorize(r, email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if err := h.ledger.Delete(r.Context(), email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setCartRequest struct {
	Email    string `json:"email"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleSetCart(w http.ResponseWriter, r *http.Request) {
	var req setCartRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if err := authorize(r, req.Email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	user, err := h.ledger.SetCartItem(r.Context(), req.Email, req.ItemID, req.Quantity)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("cart updated", "email", user.Email, "item_id", req.ItemID, "quantity", req.Quantity)
	respond.JSON(w, h.logger, http.StatusOK, user.Public())
}

// authorize checks that the request's token belongs to email.
func authorize(r *http.Request, email string) error {
	token, ok := tokens.FromContext(r.Context())
	if !ok {
		return apperr.New(apperr.KindUnauthorized, "missing or invalid token")
	}
	if token.Email != email {
		return apperr.New(apperr.KindUnauthorized, "token does not belong to this user")
	}
	return nil
}
