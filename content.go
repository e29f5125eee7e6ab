package mt

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"
)

// Sentinel field labels used to locate body and excerpt content inside
// the content-data payload shape. These match the field names the site's
// content types define in the CMS.
const (
	fieldLabelBody    = "本文"
	fieldLabelExcerpt = "概要文"
)

// ---------------------------------------------------------------------------
// API response types (match MovableType Data API JSON shapes)
// ---------------------------------------------------------------------------

type apiEntryListResponse struct {
	TotalResults int            `json:"totalResults"`
	Items        []apiEntryItem `json:"items"`
}

// apiEntryItem covers both payload shapes the CMS is known to return:
// the content-data shape (a generic label plus a data[] array of named
// fields) and the legacy entries shape (direct title/body/excerpt
// fields). The presence of data[] decides which shape an item uses.
type apiEntryItem struct {
	ID    json.Number `json:"id"`
	Label string      `json:"label"`
	Data  []apiField  `json:"data"`

	Title   string `json:"title"`
	Body    string `json:"body"`
	Excerpt string `json:"excerpt"`

	CreatedDate     string `json:"createdDate"`
	ModifiedDate    string `json:"modifiedDate"`
	Status          string `json:"status"`
	Date            string `json:"date"`
	UnpublishedDate string `json:"unpublishedDate"`
	Permalink       string `json:"permalink"`
	Basename        string `json:"basename"`
	Updatable       bool   `json:"updatable"`

	Author       apiAuthor        `json:"author"`
	Blog         apiBlog          `json:"blog"`
	Categories   []apiCategory    `json:"categories"`
	Tags         []Tag            `json:"tags"`
	CustomFields []apiCustomField `json:"customFields"`
}

type apiField struct {
	ID    json.Number     `json:"id"`
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
}

type apiAuthor struct {
	ID   json.Number `json:"id"`
	Name string      `json:"displayName"`
}

type apiBlog struct {
	ID json.Number `json:"id"`
}

type apiCategory struct {
	ID    json.Number `json:"id"`
	Label string      `json:"label"`
}

type apiCustomField struct {
	Basename string          `json:"basename"`
	Value    json.RawMessage `json:"value"`
}

type apiContentTypeListResponse struct {
	TotalResults int              `json:"totalResults"`
	Items        []apiContentType `json:"items"`
}

type apiContentType struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Label string      `json:"label"`
}

// ---------------------------------------------------------------------------
// Normalized content model
// ---------------------------------------------------------------------------

// ContentType describes one content type defined in the CMS.
type ContentType struct {
	ID    string
	Name  string
	Label string
}

// Author identifies the CMS user who wrote an entry.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is one category assigned to an entry.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Tag is one tag assigned to an entry. The CMS returns tags either as
// plain strings or as {id, name} objects depending on the API surface;
// both decode into this type.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts both the string and the object tag encodings.
func (t *Tag) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.ID = ""
		t.Name = s
		return nil
	}
	var obj struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.ID = obj.ID.String()
	t.Name = obj.Name
	return nil
}

// FieldValue is one named field carried by the content-data shape,
// preserved on the normalized entry for callers that need fields beyond
// body and excerpt.
type FieldValue struct {
	Label string
	Data  any
}

// Entry is the normalized representation of one content record,
// constructed fresh from raw CMS JSON on every fetch. The core keeps no
// cache; callers own any caching policy.
type Entry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Excerpt string `json:"excerpt"`

	CreatedDate  string `json:"createdDate"`
	ModifiedDate string `json:"modifiedDate"`
	Status       string `json:"status"`

	Author       Author         `json:"author"`
	Categories   []Category     `json:"categories"`
	Tags         []Tag          `json:"tags"`
	CustomFields map[string]any `json:"customFields,omitempty"`

	// CMS passthrough fields.
	Label           string       `json:"label,omitempty"`
	RawFieldData    []FieldValue `json:"rawFieldData,omitempty"`
	Permalink       string       `json:"permalink,omitempty"`
	Basename        string       `json:"basename,omitempty"`
	Blog            string       `json:"blog,omitempty"`
	Date            string       `json:"date,omitempty"`
	UnpublishedDate string       `json:"unpublishedDate,omitempty"`
	Updatable       bool         `json:"updatable,omitempty"`
}

// EntryList is the result of one list call.
type EntryList struct {
	TotalResults int     `json:"totalResults"`
	Items        []Entry `json:"items"`
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

// normalizeEntry converts a raw payload item into an Entry. The shape is
// decided once here: items carrying a data[] field array use the
// content-data mapping, everything else the legacy entries mapping.
func normalizeEntry(it apiEntryItem) Entry {
	e := Entry{
		ID:              it.ID.String(),
		CreatedDate:     it.CreatedDate,
		ModifiedDate:    it.ModifiedDate,
		Status:          it.Status,
		Label:           it.Label,
		Permalink:       it.Permalink,
		Basename:        it.Basename,
		Blog:            it.Blog.ID.String(),
		Date:            it.Date,
		UnpublishedDate: it.UnpublishedDate,
		Updatable:       it.Updatable,
		Tags:            it.Tags,
	}

	if it.Author.ID != "" || it.Author.Name != "" {
		e.Author = Author{ID: it.Author.ID.String(), Name: it.Author.Name}
	}

	for _, c := range it.Categories {
		e.Categories = append(e.Categories, Category{ID: c.ID.String(), Label: c.Label})
	}

	if len(it.CustomFields) > 0 {
		e.CustomFields = make(map[string]any, len(it.CustomFields))
		for _, f := range it.CustomFields {
			var val any
			_ = json.Unmarshal(f.Value, &val)
			e.CustomFields[f.Basename] = val
		}
	}

	if it.Data != nil {
		// Content-data shape: the generic label is the title; body and
		// excerpt live in named fields. A missing field yields "".
		e.Title = it.Label
		e.Body = fieldText(it.Data, fieldLabelBody)
		e.Excerpt = fieldText(it.Data, fieldLabelExcerpt)
		e.RawFieldData = make([]FieldValue, len(it.Data))
		for i, f := range it.Data {
			var val any
			_ = json.Unmarshal(f.Data, &val)
			e.RawFieldData[i] = FieldValue{Label: f.Label, Data: val}
		}
		return e
	}

	// Legacy entries shape.
	e.Title = it.Title
	e.Body = it.Body
	e.Excerpt = it.Excerpt
	return e
}

// fieldText returns the string value of the field with the given label,
// or "" when the field is absent or not a string.
func fieldText(fields []apiField, label string) string {
	for _, f := range fields {
		if f.Label != label {
			continue
		}
		var s string
		if err := json.Unmarshal(f.Data, &s); err != nil {
			return ""
		}
		return s
	}
	return ""
}

// ---------------------------------------------------------------------------
// Entry accessors
// ---------------------------------------------------------------------------

// Field returns the raw value of a content-data field by label, or nil.
func (e Entry) Field(label string) any {
	for _, f := range e.RawFieldData {
		if f.Label == label {
			return f.Data
		}
	}
	return nil
}

// FieldText returns a content-data field as a string, or "".
func (e Entry) FieldText(label string) string {
	s, _ := e.Field(label).(string)
	return s
}

// CustomText returns a legacy custom field as a string, or "".
func (e Entry) CustomText(basename string) string {
	s, _ := e.CustomFields[basename].(string)
	return s
}

// BodyHTML returns the entry body as safe HTML for templates. The body
// is authored in the CMS by trusted editors.
func (e Entry) BodyHTML() template.HTML {
	return template.HTML(e.Body)
}

// Slug returns the URL segment for the entry: the basename when the CMS
// assigned one, otherwise the entry ID.
func (e Entry) Slug() string {
	if e.Basename != "" {
		return e.Basename
	}
	return e.ID
}

// PublishedTime parses the entry's publish date (falling back to the
// creation date). Returns the zero time when neither parses.
func (e Entry) PublishedTime() time.Time {
	for _, raw := range []string{e.Date, e.CreatedDate} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PublishedYear returns the four-digit year of the publish date, or 0.
func (e Entry) PublishedYear() int {
	t := e.PublishedTime()
	if t.IsZero() {
		return 0
	}
	return t.Year()
}

// HasTag reports whether the entry carries the named tag.
func (e Entry) HasTag(name string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}
