package tokens

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
)

// Header carries the token id on authenticated requests.
const Header = "token"

type ctxKey struct{}

func NewContext(ctx context.Context, token *domain.Token) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

func FromContext(ctx context.Context) (*domain.Token, bool) {
	token, ok := ctx.Value(ctxKey{}).(*domain.Token)
	return token, ok && token != nil
}

// Require rejects requests without a live token and stores the token in the
// request context for the wrapped handler.
func Require(v *Verifier, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := v.Verify(r.Context(), r.Header.Get(Header), "")
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		next(w, r.WithContext(NewContext(r.Context(), token)))
	}
}
