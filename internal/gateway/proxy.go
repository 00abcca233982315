package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

// forwardedHeaders are copied from the client request to the upstream one.
var forwardedHeaders = []string{"Content-Type", "Accept", tokens.Header}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ForwardRequest replays r against the upstream, keeping its path and query.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request) (*http.Response, error) {
	target := p.baseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	return p.client.Do(req)
}
