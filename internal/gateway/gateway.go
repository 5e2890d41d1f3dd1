// Package gateway issues typed reads and writes against Service Layer entities.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/query"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is used when the client is created without a page size
const DefaultPageSize = 100

// Client carries the settings shared by all gateway calls. The http client
// and cookies come from the session each call runs in.
type Client struct {
	metrics  *metrics.Metrics
	pageSize int
}

type response struct {
	status int
	body   []byte
}

type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"odata.nextLink"`
	// OData v4 spelling
	NextLinkV4 string `json:"@odata.nextLink"`
}

func (c collection[T]) hasMore() bool {
	return c.NextLink != "" || c.NextLinkV4 != ""
}

// NewClient creates a new gateway client
func NewClient(m *metrics.Metrics, pageSize int) *Client {
	if m == nil {
		m = metrics.NewMetrics()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		metrics:  m,
		pageSize: pageSize,
	}
}

// PageSize returns the number of records requested per page
func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) do(ctx context.Context, s *session.Session, method, path string, payload []byte) (*response, error) {
	if s == nil || !s.Live() {
		return nil, session.ErrClosed
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+"/"+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	s.Apply(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodGet {
		req.Header.Set("Prefer", "odata.maxpagesize="+strconv.Itoa(c.pageSize))
	}

	name := "erp." + method + "." + entityOf(path)
	start := time.Now()
	resp, err := s.Client().Do(req)
	if err != nil {
		c.metrics.ObserveCall(name, time.Since(start), true)
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	took := time.Since(start)
	c.metrics.ObserveCall(name, took, err != nil || resp.StatusCode >= http.StatusBadRequest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", took).
		Msg("ERP call")

	return &response{status: resp.StatusCode, body: raw}, nil
}

// GetOne reads a single entity. A non-200 status yields nil without an error.
func GetOne[T any](ctx context.Context, c *Client, s *session.Session, path string) (*T, error) {
	resp, err := c.do(ctx, s, http.MethodGet, path, nil)
	if err != nil {
		return nil, &FetchError{URL: path, Message: "request failed", Err: err}
	}
	if resp.status != http.StatusOK {
		logNotFound(path, resp)
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &FetchError{URL: path, StatusCode: resp.status, Message: "failed to decode entity", Err: err}
	}
	return &out, nil
}

// ListMany reads one collection response. A non-200 status yields nil without an error.
func ListMany[T any](ctx context.Context, c *Client, s *session.Session, path string) ([]T, error) {
	page, err := listPage[T](ctx, c, s, path)
	if err != nil || page == nil {
		return nil, err
	}
	return page.Value, nil
}

func listPage[T any](ctx context.Context, c *Client, s *session.Session, path string) (*collection[T], error) {
	resp, err := c.do(ctx, s, http.MethodGet, path, nil)
	if err != nil {
		return nil, &FetchError{URL: path, Message: "request failed", Err: err}
	}
	if resp.status != http.StatusOK {
		logNotFound(path, resp)
		return nil, nil
	}

	var out collection[T]
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &FetchError{URL: path, StatusCode: resp.status, Message: "failed to decode collection", Err: err}
	}
	return &out, nil
}

// ListAll reads every page of entity matching the filter expression, ordered
// by orderBy. sel is a rendered $select clause. The backend may serve pages
// shorter than requested; paging continues while it announces a next link
// and ends on an empty page, or on a short page without one.
func ListAll[T any](ctx context.Context, c *Client, s *session.Session, entity, sel, filter, orderBy string) ([]T, error) {
	top := c.pageSize
	all := []T{}
	for skip := 0; ; {
		page, err := listPage[T](ctx, c, s, query.BuildPageURL(entity, sel, query.Filter(filter), orderBy, skip, top))
		if err != nil {
			return nil, err
		}
		if page == nil || len(page.Value) == 0 {
			return all, nil
		}
		all = append(all, page.Value...)
		if len(page.Value) < top && !page.hasMore() {
			return all, nil
		}
		skip += len(page.Value)
	}
}

// Create posts body to path and decodes the created entity. It is not retried.
func Create[T any](ctx context.Context, c *Client, s *session.Session, path string, body interface{}) (*T, error) {
	return modify[T](ctx, c, s, http.MethodPost, path, body)
}

// Update patches the entity at path and decodes the updated entity. It is not retried.
func Update[T any](ctx context.Context, c *Client, s *session.Session, path string, body interface{}) (*T, error) {
	return modify[T](ctx, c, s, http.MethodPatch, path, body)
}

func modify[T any](ctx context.Context, c *Client, s *session.Session, method, path string, body interface{}) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ModificationError{Method: method, URL: path, Message: "failed to encode body", Err: err}
	}

	resp, err := c.do(ctx, s, method, path, payload)
	if err != nil {
		return nil, &ModificationError{Method: method, URL: path, Message: "request failed", Err: err}
	}
	if resp.status != http.StatusOK {
		return nil, &ModificationError{
			Method:     method,
			URL:        path,
			StatusCode: resp.status,
			Message:    models.ErrorMessage(resp.body),
			Body:       string(resp.body),
		}
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return nil, &ModificationError{Method: method, URL: path, StatusCode: resp.status, Message: "no entity returned", Err: ErrEmptyBody}
	}

	var out T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &ModificationError{
			Method:     method,
			URL:        path,
			StatusCode: resp.status,
			Message:    "failed to decode entity",
			Body:       string(resp.body),
			Err:        err,
		}
	}
	return &out, nil
}

// Count returns the number of entities at path matching filter. ok is false
// when the backend answers with a non-200 status.
func Count(ctx context.Context, c *Client, s *session.Session, path, filter string) (n int, ok bool, err error) {
	target := strings.TrimSuffix(path, "/") + "/$count"
	if f := query.Filter(filter); f != "" {
		target += "?" + f
	}

	resp, err := c.do(ctx, s, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, &CountError{URL: target, Message: "request failed", Err: err}
	}
	if resp.status != http.StatusOK {
		logNotFound(target, resp)
		return 0, false, nil
	}

	text := strings.TrimSpace(strings.TrimPrefix(string(resp.body), "\ufeff"))
	n, err = strconv.Atoi(text)
	if err != nil {
		return 0, false, &CountError{URL: target, StatusCode: resp.status, Message: "invalid count " + strconv.Quote(text), Err: err}
	}
	return n, true, nil
}

func logNotFound(path string, resp *response) {
	event := log.Debug()
	if resp.status != http.StatusNotFound {
		event = log.Warn()
	}
	event.Str("path", path).
		Int("status", resp.status).
		Str("message", models.ErrorMessage(resp.body)).
		Msg("ERP read returned no result")
}

// entityOf returns the entity set name a request path addresses
func entityOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "?(/"); i >= 0 {
		return path[:i]
	}
	return path
}
