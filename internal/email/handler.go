// Package email is a development mail transport. It accepts messages over
// HTTP, logs them and keeps the most recent ones in memory for inspection.
package email

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
)

const outboxSize = 100

type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
	SentAt  time.Time `json:"sent_at"`
}

type Handler struct {
	maxDelay time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	outbox []Message
}

// NewHandler returns a handler that waits up to maxDelay before accepting a
// message, simulating a slow upstream.
func NewHandler(maxDelay time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		maxDelay: maxDelay,
		logger:   logger,
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if err := req.validate(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if h.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(h.maxDelay))))
	}

	msg := Message{
		ID:      uuid.NewString(),
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTML,
		SentAt:  time.Now().UTC(),
	}
	h.store(msg)

	h.logger.Info("email sent", "id", msg.ID, "to", msg.To, "subject", msg.Subject)
	respond.JSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent", ID: msg.ID})
}

// HandleList returns the retained messages, newest last.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	msgs := make([]Message, len(h.outbox))
	copy(msgs, h.outbox)
	h.mu.Unlock()

	respond.JSON(w, h.logger, http.StatusOK, msgs)
}

func (h *Handler) store(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outbox = append(h.outbox, msg)
	if len(h.outbox) > outboxSize {
		h.outbox = h.outbox[len(h.outbox)-outboxSize:]
	}
}

func (r sendRequest) validate() error {
	if _, err := mail.ParseAddress(r.From); err != nil {
		return apperr.New(apperr.KindInvalidRequest, "invalid from address")
	}
	if _, err := mail.ParseAddress(r.To); err != nil {
		return apperr.New(apperr.KindInvalidRequest, "invalid to address")
	}
	if strings.TrimSpace(r.Subject) == "" {
		return apperr.New(apperr.KindInvalidRequest, "missing subject")
	}
	if strings.TrimSpace(r.HTML) == "" {
		return apperr.New(apperr.KindInvalidRequest, "missing html body")
	}
	return nil
}
