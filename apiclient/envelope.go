package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Envelope wraps every API response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// Meta describes one page of a collection.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is the canonical paginated response: {success, message, data: [...], meta: {...}}.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`

	hasMore *bool
}

// HasMore reports whether a later page exists.
func (p *Page[T]) HasMore() bool {
	if p.hasMore != nil {
		return *p.hasMore
	}
	return p.Meta.Page < p.Meta.TotalPages
}

// LegacyPagination is the pagination block of LegacyPage.
type LegacyPagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int   `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    *bool `json:"hasMore,omitempty"`
}

// LegacyPage is the {items, pagination} response shape some endpoints still return.
//
// Deprecated: new endpoints return Page. GetPage accepts both and always yields a Page.
type LegacyPage[T any] struct {
	Items      []T              `json:"items"`
	Pagination LegacyPagination `json:"pagination"`
}

// Page converts l to the canonical shape.
func (l *LegacyPage[T]) Page() *Page[T] {
	return &Page[T]{
		Data: l.Items,
		Meta: Meta{
			Page:       l.Pagination.Page,
			Limit:      l.Pagination.Limit,
			Total:      l.Pagination.Total,
			TotalPages: l.Pagination.TotalPages,
		},
		hasMore: l.Pagination.HasMore,
	}
}

var ErrUnrecognisedPage = errors.New("unrecognised paginated response")

// GetPage fetches one page of a collection.
func GetPage[T any](ctx context.Context, c *Client, path string, query url.Values) (*Page[T], error) {
	_, body, err := c.do(ctx, &request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return nil, err
	}
	return decodePage[T](body)
}

type rawEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rawPage struct {
	rawEnvelope
	Meta       *Meta             `json:"meta"`
	Items      json.RawMessage   `json:"items"`
	Pagination *LegacyPagination `json:"pagination"`
}

func decodeEnvelope(status int, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("apiclient: decode envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return newAPIError(status, body)
	}
	if out == nil || isNull(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("apiclient: decode data: %w", err)
	}
	return nil
}

// decodePage accepts, in order: data+meta, items+pagination at the top level, or either shape
// nested inside data.
func decodePage[T any](body []byte) (*Page[T], error) {
	var raw rawPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("apiclient: decode page: %w", err)
	}
	if raw.Success != nil && !*raw.Success {
		return nil, newAPIError(http.StatusOK, body)
	}

	if page, ok, err := pageFrom[T](&raw); ok || err != nil {
		return page, err
	}

	if len(raw.Data) > 0 && raw.Data[0] == '{' {
		var nested rawPage
		if err := json.Unmarshal(raw.Data, &nested); err != nil {
			return nil, fmt.Errorf("apiclient: decode nested page: %w", err)
		}
		if page, ok, err := pageFrom[T](&nested); ok || err != nil {
			return page, err
		}
	}
	return nil, ErrUnrecognisedPage
}

func pageFrom[T any](raw *rawPage) (*Page[T], bool, error) {
	switch {
	case raw.Meta != nil && !isNull(raw.Data) && raw.Data[0] == '[':
		page := &Page[T]{Meta: *raw.Meta}
		if err := json.Unmarshal(raw.Data, &page.Data); err != nil {
			return nil, true, fmt.Errorf("apiclient: decode page data: %w", err)
		}
		return page, true, nil

	case raw.Pagination != nil && !isNull(raw.Items):
		legacy := &LegacyPage[T]{Pagination: *raw.Pagination}
		if err := json.Unmarshal(raw.Items, &legacy.Items); err != nil {
			return nil, true, fmt.Errorf("apiclient: decode page items: %w", err)
		}
		return legacy.Page(), true, nil
	}
	return nil, false, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
