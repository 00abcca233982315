package catalog

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
)

type Handler struct {
	catalog *Catalog
	logger  *slog.Logger
}

func NewHandler(catalog *Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
	}
}

// HandleGet serves the whole menu, or one item when ?id= is given.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.handleList(w, r)
		return
	}

	item, err := h.catalog.ByID(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if item == nil {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindNotFound, "item not found"))
		return
	}

	h.logger.Info("item retrieved", "item_id", id)
	respond.JSON(w, h.logger, http.StatusOK, item)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("items listed", "count", len(items))
	respond.JSON(w, h.logger, http.StatusOK, items)
}
