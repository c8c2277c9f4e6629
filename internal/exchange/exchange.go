package exchange

import (
	"context"
	"net/url"
)

// Executor sends one REST call and returns the decoded JSON object.
type Executor interface {
	Get(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error)
	Post(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error)
	Delete(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error)
}
