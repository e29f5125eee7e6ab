package mt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client talks to the MovableType Data API for one site. It owns the
// authentication session and access token; both are acquired lazily on
// the first data call and replaced after the CMS rejects them.
//
// A Client may be shared between goroutines: session state is guarded
// and login/token calls are serialized.
type Client struct {
	config Config
	http   *http.Client

	mu          sync.Mutex
	sessionID   string
	accessToken string
}

// NewClient creates a Client for the given configuration. A zero
// HTTPTimeout means no client-side deadline; per-call deadlines can
// still be set through the context.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// versionURL composes {baseURL}/{version}{path} for endpoints outside
// the site scope (authentication, token).
func (c *Client) versionURL(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + c.config.APIVersion + path
}

// siteURL composes {baseURL}/{version}/sites/{siteID}{path}.
func (c *Client) siteURL(path string) string {
	return c.versionURL("/sites/" + c.config.SiteID + path)
}

// do issues an authenticated GET against the site scope and decodes the
// JSON response into out.
//
// An access token is acquired first if the client holds none. When the
// CMS answers 401 the session is discarded, exactly one re-authentication
// is attempted, and the call is reissued once; a second failure surfaces
// unchanged.
func (c *Client) do(ctx context.Context, path string, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	err = c.get(ctx, path, token, out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.invalidate(token)
		token, err = c.ensureToken(ctx)
		if err != nil {
			return err
		}
		return c.get(ctx, path, token, out)
	}
	return err
}

// get performs a single authenticated GET request.
func (c *Client) get(ctx context.Context, path, token string, out any) error {
	fullURL := c.siteURL(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("mt: create request: %w", err)
	}
	req.Header.Set("X-MT-Authorization", "MTAuth accessToken="+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mt: request %s failed: %w", fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
			URL:        fullURL,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mt: decode %s: %w", fullURL, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entry repository
// ---------------------------------------------------------------------------

// ListOptions filter a ListEntries call. Zero-valued fields are omitted
// from the query string; no implicit defaults are applied here. Callers
// supply policy defaults (limit, status) at their own boundary.
type ListOptions struct {
	Limit  int
	Offset int
	Status string

	IncludeCategories   bool
	IncludeTags         bool
	IncludeCustomFields bool
}

// EntryOptions configure a single-entry fetch.
type EntryOptions struct {
	IncludeCategories   bool
	IncludeTags         bool
	IncludeCustomFields bool
}

func (o ListOptions) query() string {
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		params.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Status != "" {
		params.Set("status", o.Status)
	}
	if o.IncludeCategories {
		params.Set("includeCategories", "true")
	}
	if o.IncludeTags {
		params.Set("includeTags", "true")
	}
	if o.IncludeCustomFields {
		params.Set("includeCustomFields", "true")
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

func (o EntryOptions) query() string {
	return ListOptions{
		IncludeCategories:   o.IncludeCategories,
		IncludeTags:         o.IncludeTags,
		IncludeCustomFields: o.IncludeCustomFields,
	}.query()
}

// ListEntries returns entries of the given content type, normalized to
// the Entry shape regardless of which payload variant the CMS used.
func (c *Client) ListEntries(ctx context.Context, contentTypeID string, opts ListOptions) (EntryList, error) {
	var raw apiEntryListResponse
	path := "/contentTypes/" + contentTypeID + "/data" + opts.query()
	if err := c.do(ctx, path, &raw); err != nil {
		return EntryList{}, err
	}

	items := make([]Entry, len(raw.Items))
	for i, it := range raw.Items {
		items[i] = normalizeEntry(it)
	}
	return EntryList{TotalResults: raw.TotalResults, Items: items}, nil
}

// GetEntry fetches a single entry by ID. A 404 from the CMS is reported
// as a NotFoundError, distinct from other API failures.
func (c *Client) GetEntry(ctx context.Context, contentTypeID, entryID string, opts EntryOptions) (Entry, error) {
	var raw apiEntryItem
	path := "/contentTypes/" + contentTypeID + "/data/" + entryID + opts.query()
	err := c.do(ctx, path, &raw)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return Entry{}, &NotFoundError{
			ContentTypeID: contentTypeID,
			EntryID:       entryID,
			Err:           apiErr,
		}
	}
	if err != nil {
		return Entry{}, err
	}
	return normalizeEntry(raw), nil
}

// ListContentTypes returns all content types defined for the site.
func (c *Client) ListContentTypes(ctx context.Context) ([]ContentType, error) {
	var raw apiContentTypeListResponse
	if err := c.do(ctx, "/contentTypes", &raw); err != nil {
		return nil, err
	}

	types := make([]ContentType, len(raw.Items))
	for i, it := range raw.Items {
		types[i] = ContentType{
			ID:    it.ID.String(),
			Name:  it.Name,
			Label: it.Label,
		}
	}
	return types, nil
}

// ResolveContentTypeID looks up a content type ID by its internal name
// or display label, case-insensitively. Absence is not an error: ok is
// false when no content type matches, so callers decide whether that is
// fatal.
func (c *Client) ResolveContentTypeID(ctx context.Context, name string) (id string, ok bool, err error) {
	types, err := c.ListContentTypes(ctx)
	if err != nil {
		return "", false, err
	}
	for _, ct := range types {
		if strings.EqualFold(ct.Name, name) || strings.EqualFold(ct.Label, name) {
			return ct.ID, true, nil
		}
	}
	return "", false, nil
}
