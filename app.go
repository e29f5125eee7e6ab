// Package mt provides a Go client for the MovableType Data API and a
// small framework for building a static corporate site from its content.
//
// The client handles the credential login handshake, access token reuse,
// and normalization of the two entry payload shapes the API returns.
// Register fixed pages and entry collections on an App, then call Run().
// The framework handles CLI commands (build, serve, check), static
// site generation, sitemap/feed output, and local preview.
package mt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
)

// Config holds the connection settings for one MovableType site.
type Config struct {
	// BaseURL is the Data API root (e.g. "https://cms.example.jp/mt/mt-data-api.cgi").
	BaseURL string

	// Username and Password are the CMS credentials used for the login
	// handshake. They are sent only to the authentication endpoint and
	// never logged.
	Username string
	Password string

	// ClientID identifies this consumer to the CMS (default
	// DefaultClientID).
	ClientID string

	// SiteID scopes all data calls to one CMS site.
	SiteID string

	// APIVersion selects the Data API version segment ("v5" or "v6",
	// default DefaultAPIVersion).
	APIVersion string

	// SiteURL is the public origin of the built site, used for
	// sitemap.xml, robots.txt, and feeds.
	SiteURL string

	// HTTPTimeout is the per-call deadline applied by the HTTP client.
	// Zero means no client-side deadline.
	HTTPTimeout time.Duration
}

// PageContext carries the resolved content a RenderFunc receives.
type PageContext struct {
	// Path is the URL path of the page being rendered.
	Path string

	// Title is the registered or derived page title.
	Title string

	// Entry is set for collection detail pages.
	Entry *Entry

	// Entries holds the collection's entries for listing and archive
	// pages, newest first.
	Entries []Entry

	// TotalResults is the CMS-reported total for the collection,
	// independent of how many entries were fetched.
	TotalResults int

	// Year is set for archive pages.
	Year int
}

// RenderFunc creates a templ Component for a page.
type RenderFunc func(PageContext) templ.Component

// pageDef is an internal registration for a fixed page.
type pageDef struct {
	path   string
	title  string
	render RenderFunc
}

// collectionDef is an internal registration for an entry collection
// bound to a logical content type.
type collectionDef struct {
	basePath string // URL prefix (e.g. "/news")
	name     string // logical content type name (e.g. "news")
	label    string // human-readable label

	listing RenderFunc // renders the listing/index page
	detail  RenderFunc // renders a single entry
	archive RenderFunc // optional: renders a per-year archive page

	feedTitle string // non-empty when an RSS feed should be written
	feedDesc  string
}

// App is the main framework entry point. Register pages and collections,
// then call Run() to dispatch CLI commands.
type App struct {
	config      Config
	registry    *Registry
	pages       []pageDef
	collections []collectionDef

	clientOnce sync.Once
	cl         *Client
}

// NewApp creates a new App with the given configuration and the default
// content type registry.
func NewApp(cfg Config) *App {
	return &App{config: cfg, registry: DefaultRegistry()}
}

// UseRegistry replaces the content type registry.
func (a *App) UseRegistry(r *Registry) {
	a.registry = r
}

// Page registers a fixed page. Title is derived from the path.
func (a *App) Page(path string, render RenderFunc) {
	a.pages = append(a.pages, pageDef{
		path:   path,
		title:  titleFromPath(path),
		render: render,
	})
}

// PageTitle registers a fixed page with an explicit title.
func (a *App) PageTitle(path, title string, render RenderFunc) {
	a.pages = append(a.pages, pageDef{
		path:   path,
		title:  title,
		render: render,
	})
}

// Collection registers an entry collection. basePath is the URL prefix
// (e.g. "/products"); contentType is the logical content type name
// resolved through the registry (falling back to the live CMS) at build
// time. Entry pages are written at basePath/{slug}.
func (a *App) Collection(basePath, contentType, label string, listing, detail RenderFunc) {
	a.collections = append(a.collections, collectionDef{
		basePath: basePath,
		name:     contentType,
		label:    label,
		listing:  listing,
		detail:   detail,
	})
}

// ArchivePages adds per-year archive pages to a registered collection,
// written at basePath/archive/{year}.
func (a *App) ArchivePages(basePath string, render RenderFunc) {
	for i := range a.collections {
		if a.collections[i].basePath == basePath {
			a.collections[i].archive = render
			return
		}
	}
}

// Feed adds an RSS feed to a registered collection, written at
// basePath/feed.xml.
func (a *App) Feed(basePath, title, description string) {
	for i := range a.collections {
		if a.collections[i].basePath == basePath {
			a.collections[i].feedTitle = title
			a.collections[i].feedDesc = description
			return
		}
	}
}

// client returns the app's shared CMS client, created on first use.
func (a *App) client() *Client {
	a.clientOnce.Do(func() {
		a.cl = NewClient(a.config)
	})
	return a.cl
}

// Entries lists entries of a logical content type, resolving the name
// through the registry (falling back to the live CMS).
func (a *App) Entries(ctx context.Context, contentType string, opts ListOptions) (EntryList, error) {
	client := a.client()
	id, err := a.registry.Lookup(ctx, client, contentType)
	if err != nil {
		return EntryList{}, err
	}
	return client.ListEntries(ctx, id, opts)
}

// Entry fetches one entry of a logical content type by ID.
func (a *App) Entry(ctx context.Context, contentType, entryID string, opts EntryOptions) (Entry, error) {
	client := a.client()
	id, err := a.registry.Lookup(ctx, client, contentType)
	if err != nil {
		return Entry{}, err
	}
	return client.GetEntry(ctx, id, entryID, opts)
}

// renderToString renders a component to an HTML string. Render errors
// yield an empty string; the build reports them per page.
func renderToString(c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// titleFromPath derives a human-readable title from a URL path.
// "/" → "Home", "/about" → "About", "/contact-us" → "Contact Us".
func titleFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "Home"
	}
	parts := strings.Split(trimmed, "/")
	last := parts[len(parts)-1]
	words := strings.Split(last, "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// testRender creates a RenderFunc from a string-returning function.
// Exported for use in tests and simple integrations.
func testRender(fn func(PageContext) string) RenderFunc {
	return func(pc PageContext) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			_, err := io.WriteString(w, fn(pc))
			return err
		})
	}
}
