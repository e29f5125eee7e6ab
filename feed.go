package mt

import (
	"encoding/xml"
	"path/filepath"
	"strings"
	"time"
)

// Number of entries included in a collection feed.
const feedItemLimit = 20

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate,omitempty"`
	Description string `xml:"description,omitempty"`
}

// writeCollectionFeed writes an RSS 2.0 feed for a collection at
// {outDir}{basePath}/feed.xml. Entries are assumed sorted newest first.
func (a *App) writeCollectionFeed(outDir string, cc collectionContent) error {
	coll := cc.coll
	siteURL := strings.TrimRight(a.config.SiteURL, "/")

	entries := cc.entries
	if len(entries) > feedItemLimit {
		entries = entries[:feedItemLimit]
	}

	items := make([]rssItem, len(entries))
	for i, e := range entries {
		link := siteURL + coll.basePath + "/" + e.Slug()
		items[i] = rssItem{
			Title:       e.Title,
			Link:        link,
			GUID:        link,
			PubDate:     rfc1123Date(e.PublishedTime()),
			Description: e.Excerpt,
		}
	}

	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       coll.feedTitle,
			Link:        siteURL + coll.basePath,
			Description: coll.feedDesc,
			Language:    "ja",
			Items:       items,
		},
	}
	if len(entries) > 0 {
		feed.Channel.LastBuildDate = rfc1123Date(entries[0].PublishedTime())
	}

	path := filepath.Join(outDir, strings.Trim(coll.basePath, "/"), "feed.xml")
	return writeXML(path, feed)
}

// rfc1123Date formats a time for RSS pubDate elements; zero times yield "".
func rfc1123Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}
