package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTOptions configures a RESTStore.
type RESTOptions struct {
	// URL of the database web application, e.g. http://localhost:8080/exist
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Client   *http.Client
}

// RESTStore talks to the REST interface of an eXist-db server, where
// collections and resources are addressed as {URL}/rest{path}.
type RESTStore struct {
	base     *url.URL
	username string
	password string
	client   *http.Client
}

// NewRESTStore creates a store for the server at opts.URL.
func NewRESTStore(opts RESTOptions) (*RESTStore, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("store URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("store URL must use http or https, got: %s", opts.URL)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &RESTStore{
		base:     base,
		username: opts.Username,
		password: opts.Password,
		client:   client,
	}, nil
}

func (s *RESTStore) endpoint(path string) string {
	u := *s.base
	u.Path = s.base.Path + "/rest" + CleanPath(path)
	return u.String()
}

func (s *RESTStore) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

func statusError(method, path string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s %s: unexpected status %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
}

// Collection implements Store.
func (s *RESTStore) Collection(ctx context.Context, path string) (Collection, error) {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return &restCollection{store: s, path: CleanPath(path)}, nil
	case http.StatusNotFound:
		return nil, ErrCollectionNotFound
	default:
		return nil, statusError(http.MethodGet, path, resp)
	}
}

// CreateCollection implements Store. The server creates missing collections
// when a resource is stored, so no request is made here.
func (s *RESTStore) CreateCollection(_ context.Context, path string) (Collection, error) {
	return &restCollection{store: s, path: CleanPath(path)}, nil
}

type restCollection struct {
	store *RESTStore
	path  string
}

func (c *restCollection) Path() string {
	return c.path
}

func (c *restCollection) Resource(ctx context.Context, name string) ([]byte, error) {
	p := c.path + "/" + name
	resp, err := c.store.do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		return data, nil
	case http.StatusNotFound:
		return nil, ErrResourceNotFound
	default:
		return nil, statusError(http.MethodGet, p, resp)
	}
}

func (c *restCollection) StoreResource(ctx context.Context, name string, content []byte) error {
	p := c.path + "/" + name
	if content == nil {
		content = []byte{}
	}
	resp, err := c.store.do(ctx, http.MethodPut, p, content)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(http.MethodPut, p, resp)
	}
	return nil
}
