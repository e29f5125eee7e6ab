package mt

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	sitemapNS      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	maxSitemapURLs = 50_000
)

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	NS       string         `xml:"xmlns,attr"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemapData holds collected URLs grouped for sitemap generation.
type sitemapData struct {
	siteURL     string
	pages       []sitemapURL            // fixed pages, listings, archives
	collections map[string][]sitemapURL // collection name → entry URLs
}

// collectSitemapURLs gathers every URL the built site exposes. Entry
// URLs carry the CMS modification date as lastmod; error pages (/404,
// /500) are excluded.
func (a *App) collectSitemapURLs(contents []collectionContent) *sitemapData {
	sd := &sitemapData{
		siteURL:     strings.TrimRight(a.config.SiteURL, "/"),
		collections: make(map[string][]sitemapURL),
	}

	for _, p := range a.pages {
		if isErrorPage(p.path) {
			continue
		}
		sd.pages = append(sd.pages, sitemapURL{Loc: sd.siteURL + p.path})
	}

	for _, cc := range contents {
		if cc.skipped {
			continue
		}
		coll := cc.coll
		sd.pages = append(sd.pages, sitemapURL{Loc: sd.siteURL + coll.basePath})

		if coll.archive != nil {
			for _, year := range entryYears(cc.entries) {
				sd.pages = append(sd.pages, sitemapURL{
					Loc: fmt.Sprintf("%s%s/archive/%d", sd.siteURL, coll.basePath, year),
				})
			}
		}

		var urls []sitemapURL
		for _, e := range cc.entries {
			urls = append(urls, sitemapURL{
				Loc:     sd.siteURL + coll.basePath + "/" + e.Slug(),
				LastMod: e.ModifiedDate,
			})
		}
		if len(urls) > 0 {
			sd.collections[coll.name] = urls
		}
	}

	return sd
}

// isErrorPage returns true for paths whose last segment is an HTTP error code.
func isErrorPage(path string) bool {
	base := filepath.Base(strings.TrimRight(path, "/"))
	return base == "404" || base == "500"
}

// write generates sitemap file(s) in the output directory. When the
// total URL count fits in one file (≤50,000) a single sitemap.xml is
// written; otherwise a sitemap index references per-collection files,
// chunked as needed.
func (sd *sitemapData) write(outDir string) error {
	totalURLs := len(sd.pages)
	for _, urls := range sd.collections {
		totalURLs += len(urls)
	}

	if totalURLs <= maxSitemapURLs {
		urls := append([]sitemapURL{}, sd.pages...)
		for _, coll := range sortedKeys(sd.collections) {
			urls = append(urls, sd.collections[coll]...)
		}
		return writeURLSet(filepath.Join(outDir, "sitemap.xml"), urls)
	}

	var indexEntries []sitemapEntry

	if len(sd.pages) > 0 {
		if err := writeURLSet(filepath.Join(outDir, "sitemap-pages.xml"), sd.pages); err != nil {
			return err
		}
		indexEntries = append(indexEntries, sitemapEntry{Loc: sd.siteURL + "/sitemap-pages.xml"})
	}

	for _, coll := range sortedKeys(sd.collections) {
		chunks := chunkURLs(sd.collections[coll], maxSitemapURLs)
		for i, chunk := range chunks {
			filename := fmt.Sprintf("sitemap-%s.xml", coll)
			if len(chunks) > 1 {
				filename = fmt.Sprintf("sitemap-%s-%d.xml", coll, i+1)
			}
			if err := writeURLSet(filepath.Join(outDir, filename), chunk); err != nil {
				return err
			}
			indexEntries = append(indexEntries, sitemapEntry{Loc: sd.siteURL + "/" + filename})
		}
	}

	idx := sitemapIndex{NS: sitemapNS, Sitemaps: indexEntries}
	return writeXML(filepath.Join(outDir, "sitemap.xml"), idx)
}

// writeRobotsTxt generates a robots.txt with a Sitemap reference.
func writeRobotsTxt(outDir, siteURL string) error {
	content := fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s/sitemap.xml\n",
		strings.TrimRight(siteURL, "/"))
	return os.WriteFile(filepath.Join(outDir, "robots.txt"), []byte(content), 0o644)
}

func writeURLSet(path string, urls []sitemapURL) error {
	return writeXML(path, urlSet{NS: sitemapNS, URLs: urls})
}

func writeXML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("mt: marshal %s: %w", filepath.Base(path), err)
	}
	content := xml.Header + string(data) + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

func sortedKeys(m map[string][]sitemapURL) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func chunkURLs(urls []sitemapURL, size int) [][]sitemapURL {
	if len(urls) <= size {
		return [][]sitemapURL{urls}
	}
	var chunks [][]sitemapURL
	for i := 0; i < len(urls); i += size {
		end := i + size
		if end > len(urls) {
			end = len(urls)
		}
		chunks = append(chunks, urls[i:end])
	}
	return chunks
}
