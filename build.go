package mt

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// BuildOptions configures the static site build.
type BuildOptions struct {
	// OutDir is the output directory for static HTML files.
	OutDir string

	// Status filters entries by publication status. The build supplies
	// the policy default ("published"); the client applies none.
	Status string

	// FetchLimit is the page size used when walking a collection's
	// entries. Defaults to 50.
	FetchLimit int

	// Minify enables HTML/CSS/JS/SVG minification of output files.
	Minify bool

	// DownloadAssets downloads images referenced by entry fields into
	// {OutDir}/assets/ and rewrites the field values to local paths.
	DownloadAssets bool
}

// collectionContent holds one collection's fetched entries.
type collectionContent struct {
	coll    collectionDef
	entries []Entry
	total   int
	skipped bool
}

// Build generates the static site: fixed pages, collection listing and
// detail pages, optional per-year archives, sitemap.xml, robots.txt,
// and registered feeds.
//
// Collections are fetched concurrently (up to 4 at a time). A collection
// whose content type cannot be resolved is skipped with a warning so the
// rest of the site still builds; any other fetch failure aborts.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	if opts.Status == "" {
		opts.Status = "published"
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 50
	}

	client := a.client()

	var m *minify.M
	if opts.Minify {
		m = minify.New()
		m.AddFunc("text/html", html.Minify)
		m.AddFunc("text/css", css.Minify)
		m.AddFunc("image/svg+xml", svg.Minify)
		m.AddFunc("application/javascript", js.Minify)
	}

	var dl *assetDownloader
	if opts.DownloadAssets {
		dl = newAssetDownloader(filepath.Join(opts.OutDir, "assets"), "/assets")
	}

	contents, err := a.fetchCollections(ctx, client, opts)
	if err != nil {
		return err
	}

	if dl != nil {
		for i := range contents {
			for j := range contents[i].entries {
				dl.resolveEntry(&contents[i].entries[j])
			}
		}
	}

	// Fixed pages.
	for _, p := range a.pages {
		pc := PageContext{Path: p.path, Title: p.title}
		if err := a.writePage(opts, m, p.render(pc), p.path); err != nil {
			return err
		}
	}

	// Collection pages.
	for _, cc := range contents {
		if cc.skipped {
			continue
		}
		if err := a.writeCollection(opts, m, cc); err != nil {
			return err
		}
	}

	// Sitemap, robots.txt, feeds.
	if a.config.SiteURL != "" {
		sd := a.collectSitemapURLs(contents)
		if err := sd.write(opts.OutDir); err != nil {
			return err
		}
		if err := writeRobotsTxt(opts.OutDir, a.config.SiteURL); err != nil {
			return err
		}
	}
	for _, cc := range contents {
		if cc.skipped || cc.coll.feedTitle == "" {
			continue
		}
		if err := a.writeCollectionFeed(opts.OutDir, cc); err != nil {
			return err
		}
	}

	return nil
}

// fetchCollections fetches all registered collections' entries, up to 4
// collections at a time.
func (a *App) fetchCollections(ctx context.Context, client *Client, opts BuildOptions) ([]collectionContent, error) {
	results := make([]collectionContent, len(a.collections))
	errs := make([]error, len(a.collections))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)

	for i, coll := range a.collections {
		wg.Add(1)
		go func(i int, coll collectionDef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = collectionContent{coll: coll}

			id, err := a.registry.Lookup(ctx, client, coll.name)
			var unknown *UnknownContentTypeError
			if errors.As(err, &unknown) {
				log.Warn().Str("collection", coll.name).
					Msg("content type not found, skipping collection")
				results[i].skipped = true
				return
			}
			if err != nil {
				errs[i] = err
				return
			}

			entries, total, err := fetchAllEntries(ctx, client, id, opts)
			if err != nil {
				errs[i] = fmt.Errorf("mt: fetch %s entries: %w", coll.name, err)
				return
			}

			sortEntriesNewestFirst(entries)
			results[i].entries = entries
			results[i].total = total
			log.Info().Str("collection", coll.name).
				Int("entries", len(entries)).Int("total", total).
				Msg("fetched collection")
		}(i, coll)
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// fetchAllEntries walks a content type's entries page by page until the
// CMS-reported total is reached.
func fetchAllEntries(ctx context.Context, client *Client, contentTypeID string, opts BuildOptions) ([]Entry, int, error) {
	var entries []Entry
	offset := 0
	total := 0

	for {
		list, err := client.ListEntries(ctx, contentTypeID, ListOptions{
			Limit:               opts.FetchLimit,
			Offset:              offset,
			Status:              opts.Status,
			IncludeCategories:   true,
			IncludeTags:         true,
			IncludeCustomFields: true,
		})
		if err != nil {
			return nil, 0, err
		}

		entries = append(entries, list.Items...)
		total = list.TotalResults

		if len(list.Items) == 0 || len(entries) >= total {
			return entries, total, nil
		}
		offset = len(entries)
	}
}

// sortEntriesNewestFirst orders entries by publish date descending, with
// ID as a stable tiebreaker.
func sortEntriesNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].PublishedTime(), entries[j].PublishedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].ID > entries[j].ID
	})
}

// writeCollection writes a collection's listing page, detail pages, and
// per-year archive pages.
func (a *App) writeCollection(opts BuildOptions, m *minify.M, cc collectionContent) error {
	coll := cc.coll

	listing := PageContext{
		Path:         coll.basePath,
		Title:        coll.label,
		Entries:      cc.entries,
		TotalResults: cc.total,
	}
	if err := a.writePage(opts, m, coll.listing(listing), coll.basePath); err != nil {
		return err
	}

	for i := range cc.entries {
		e := cc.entries[i]
		path := coll.basePath + "/" + e.Slug()
		pc := PageContext{Path: path, Title: e.Title, Entry: &e}
		if err := a.writePage(opts, m, coll.detail(pc), path); err != nil {
			return err
		}
	}

	if coll.archive == nil {
		return nil
	}
	for _, year := range entryYears(cc.entries) {
		var matched []Entry
		for _, e := range cc.entries {
			if e.PublishedYear() == year {
				matched = append(matched, e)
			}
		}
		path := fmt.Sprintf("%s/archive/%d", coll.basePath, year)
		pc := PageContext{
			Path:         path,
			Title:        fmt.Sprintf("%s %d", coll.label, year),
			Entries:      matched,
			TotalResults: len(matched),
			Year:         year,
		}
		if err := a.writePage(opts, m, coll.archive(pc), path); err != nil {
			return err
		}
	}
	return nil
}

// entryYears returns the distinct publish years present, descending.
// Entries without a parseable date are excluded.
func entryYears(entries []Entry) []int {
	seen := make(map[int]bool)
	var years []int
	for _, e := range entries {
		y := e.PublishedYear()
		if y != 0 && !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// writePage renders a component, optionally minifies, and writes the
// HTML file for the given URL path.
func (a *App) writePage(opts BuildOptions, m *minify.M, c templ.Component, path string) error {
	output, err := renderToString(c)
	if err != nil {
		return fmt.Errorf("mt: render %s: %w", path, err)
	}

	if m != nil {
		minified, err := m.String("text/html", output)
		if err == nil {
			output = minified
		}
		// On minification error, fall through with original output.
	}

	outPath := pathToFile(opts.OutDir, path)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mt: mkdir %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, []byte(output), 0o644); err != nil {
		return fmt.Errorf("mt: write %s: %w", outPath, err)
	}
	return nil
}

// pathToFile converts a URL path to a filesystem path.
// "/" → "{outDir}/index.html"
// "/news" → "{outDir}/news/index.html"
func pathToFile(outDir, urlPath string) string {
	trimmed := strings.Trim(urlPath, "/")
	if trimmed == "" {
		return filepath.Join(outDir, "index.html")
	}
	return filepath.Join(outDir, trimmed, "index.html")
}

// ---------------------------------------------------------------------------
// Asset downloading
// ---------------------------------------------------------------------------

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".avif", ".gif", ".svg"}

// assetDownloader downloads images referenced by entry fields into the
// build output directory so the built site does not hotlink the CMS.
type assetDownloader struct {
	client    *http.Client
	outDir    string
	webPrefix string

	mu    sync.Mutex
	cache map[string]string // remote URL -> local web path
}

func newAssetDownloader(outDir, webPrefix string) *assetDownloader {
	return &assetDownloader{
		client:    &http.Client{},
		outDir:    outDir,
		webPrefix: webPrefix,
		cache:     make(map[string]string),
	}
}

// resolveEntry downloads every image URL found in the entry's custom
// fields and content-data fields, rewriting the values to local paths.
// Download failures leave the remote URL in place.
func (d *assetDownloader) resolveEntry(e *Entry) {
	for key, val := range e.CustomFields {
		if s, ok := val.(string); ok && isImageURL(s) {
			if local, err := d.download(s); err == nil {
				e.CustomFields[key] = local
			}
		}
	}
	for i, f := range e.RawFieldData {
		if s, ok := f.Data.(string); ok && isImageURL(s) {
			if local, err := d.download(s); err == nil {
				e.RawFieldData[i].Data = local
			}
		}
	}
}

// isImageURL reports whether s is an absolute URL with an image extension.
func isImageURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// download fetches a remote URL, saves it under outDir, and returns the
// web path. Results are cached per URL.
func (d *assetDownloader) download(remoteURL string) (string, error) {
	d.mu.Lock()
	if local, ok := d.cache[remoteURL]; ok {
		d.mu.Unlock()
		return local, nil
	}
	d.mu.Unlock()

	resp, err := d.client.Get(remoteURL)
	if err != nil {
		return "", fmt.Errorf("mt: download %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("mt: download %s: status %d", remoteURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("mt: read %s: %w", remoteURL, err)
	}

	u, _ := url.Parse(remoteURL)
	ext := strings.ToLower(filepath.Ext(u.Path))
	h := sha256.Sum256([]byte(remoteURL))
	filename := fmt.Sprintf("%x%s", h[:8], ext)

	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return "", fmt.Errorf("mt: mkdir %s: %w", d.outDir, err)
	}
	if err := os.WriteFile(filepath.Join(d.outDir, filename), body, 0o644); err != nil {
		return "", fmt.Errorf("mt: write asset %s: %w", filename, err)
	}

	webPath := d.webPrefix + "/" + filename

	d.mu.Lock()
	d.cache[remoteURL] = webPath
	d.mu.Unlock()

	return webPath, nil
}
