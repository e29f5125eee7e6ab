package mt

import (
	"encoding/json"
	"testing"
	"time"
)

func decodeItem(t *testing.T, raw string) apiEntryItem {
	t.Helper()
	var it apiEntryItem
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatal(err)
	}
	return it
}

func TestNormalizeEntry_ContentDataShape(t *testing.T) {
	it := decodeItem(t, `{
		"id": 12,
		"label": "春の新製品リリース",
		"data": [
			{"id": 1, "label": "本文", "data": "<p>本文テキスト</p>"},
			{"id": 2, "label": "概要文", "data": "短い概要"},
			{"id": 3, "label": "担当部署", "data": "広報部"}
		],
		"createdDate": "2026-04-01T10:00:00+09:00",
		"modifiedDate": "2026-04-02T09:00:00+09:00",
		"status": "Publish",
		"basename": "spring-release"
	}`)

	e := normalizeEntry(it)

	if e.ID != "12" {
		t.Errorf("ID = %q", e.ID)
	}
	if e.Title != "春の新製品リリース" {
		t.Errorf("Title = %q, want the generic label", e.Title)
	}
	if e.Body != "<p>本文テキスト</p>" {
		t.Errorf("Body = %q", e.Body)
	}
	if e.Excerpt != "短い概要" {
		t.Errorf("Excerpt = %q", e.Excerpt)
	}
	if len(e.RawFieldData) != 3 {
		t.Fatalf("RawFieldData len = %d, want 3", len(e.RawFieldData))
	}
	if e.FieldText("担当部署") != "広報部" {
		t.Errorf("FieldText = %q", e.FieldText("担当部署"))
	}
}

func TestNormalizeEntry_LegacyShape(t *testing.T) {
	it := decodeItem(t, `{
		"id": 5,
		"title": "Old Entry",
		"body": "<p>old body</p>",
		"excerpt": "old excerpt",
		"status": "Publish",
		"author": {"id": 1, "displayName": "Tanaka"},
		"categories": [{"id": 9, "label": "News"}]
	}`)

	e := normalizeEntry(it)

	if e.Title != "Old Entry" || e.Body != "<p>old body</p>" || e.Excerpt != "old excerpt" {
		t.Errorf("entry = %+v", e)
	}
	if e.Author.Name != "Tanaka" || e.Author.ID != "1" {
		t.Errorf("Author = %+v", e.Author)
	}
	if len(e.Categories) != 1 || e.Categories[0].Label != "News" {
		t.Errorf("Categories = %+v", e.Categories)
	}
	if e.RawFieldData != nil {
		t.Errorf("legacy entries carry no field data, got %+v", e.RawFieldData)
	}
}

func TestNormalizeEntry_EmptyDataArrayIsContentData(t *testing.T) {
	// "data": [] still selects the content-data mapping, yielding empty
	// body and excerpt rather than falling back to legacy fields.
	it := decodeItem(t, `{"id": 2, "label": "B", "data": []}`)

	e := normalizeEntry(it)

	if e.Title != "B" {
		t.Errorf("Title = %q, want B", e.Title)
	}
	if e.Body != "" || e.Excerpt != "" {
		t.Errorf("Body = %q, Excerpt = %q, want empty", e.Body, e.Excerpt)
	}
}

func TestNormalizeEntry_MissingSentinelFields(t *testing.T) {
	it := decodeItem(t, `{
		"id": 3,
		"label": "C",
		"data": [{"id": 1, "label": "画像", "data": "https://cdn.example.jp/a.png"}]
	}`)

	e := normalizeEntry(it)

	if e.Body != "" || e.Excerpt != "" {
		t.Errorf("Body = %q, Excerpt = %q, want empty for absent fields", e.Body, e.Excerpt)
	}
}

func TestNormalizeEntry_NonStringSentinelYieldsEmpty(t *testing.T) {
	it := decodeItem(t, `{
		"id": 4,
		"label": "D",
		"data": [{"id": 1, "label": "本文", "data": {"blocks": []}}]
	}`)

	e := normalizeEntry(it)

	if e.Body != "" {
		t.Errorf("Body = %q, want empty for non-string field", e.Body)
	}
	if e.Field("本文") == nil {
		t.Error("raw value should still be reachable through Field")
	}
}

func TestNormalizeEntry_CustomFields(t *testing.T) {
	it := decodeItem(t, `{
		"id": 6,
		"title": "E",
		"customFields": [
			{"basename": "hero_image", "value": "https://cdn.example.jp/hero.jpg"},
			{"basename": "priority", "value": 3}
		]
	}`)

	e := normalizeEntry(it)

	if e.CustomText("hero_image") != "https://cdn.example.jp/hero.jpg" {
		t.Errorf("CustomText = %q", e.CustomText("hero_image"))
	}
	if v, ok := e.CustomFields["priority"].(float64); !ok || v != 3 {
		t.Errorf("priority = %v", e.CustomFields["priority"])
	}
}

func TestTag_UnmarshalJSON(t *testing.T) {
	var tags []Tag
	raw := `["plain", {"id": 4, "name": "object"}]`
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		t.Fatal(err)
	}

	if tags[0].Name != "plain" || tags[0].ID != "" {
		t.Errorf("tags[0] = %+v", tags[0])
	}
	if tags[1].Name != "object" || tags[1].ID != "4" {
		t.Errorf("tags[1] = %+v", tags[1])
	}
}

func TestEntry_HasTag_CaseInsensitive(t *testing.T) {
	e := Entry{Tags: []Tag{{Name: "Campaign"}}}
	if !e.HasTag("campaign") {
		t.Error("HasTag should match case-insensitively")
	}
	if e.HasTag("other") {
		t.Error("HasTag matched an absent tag")
	}
}

func TestEntry_Slug(t *testing.T) {
	if got := (Entry{ID: "7", Basename: "launch"}).Slug(); got != "launch" {
		t.Errorf("Slug = %q, want launch", got)
	}
	if got := (Entry{ID: "7"}).Slug(); got != "7" {
		t.Errorf("Slug = %q, want the ID fallback", got)
	}
}

func TestEntry_PublishedTime(t *testing.T) {
	e := Entry{
		Date:        "2026-04-01T10:00:00+09:00",
		CreatedDate: "2026-03-01T10:00:00+09:00",
	}
	if e.PublishedTime().Month() != time.April {
		t.Errorf("PublishedTime = %v, want the publish date over the creation date", e.PublishedTime())
	}

	fallback := Entry{CreatedDate: "2026-03-01T10:00:00+09:00"}
	if fallback.PublishedTime().Month() != time.March {
		t.Errorf("PublishedTime = %v, want the creation date fallback", fallback.PublishedTime())
	}

	if !(Entry{Date: "not-a-date"}).PublishedTime().IsZero() {
		t.Error("unparseable dates should yield the zero time")
	}
	if (Entry{CreatedDate: "2026-03-01T10:00:00+09:00"}).PublishedYear() != 2026 {
		t.Error("PublishedYear should follow PublishedTime")
	}
	if (Entry{}).PublishedYear() != 0 {
		t.Error("PublishedYear should be 0 without a date")
	}
}

func TestNormalizeEntry_Idempotent(t *testing.T) {
	it := decodeItem(t, `{
		"id": 1,
		"label": "A",
		"data": [{"id": 1, "label": "本文", "data": "x"}]
	}`)

	first := normalizeEntry(it)
	second := normalizeEntry(it)

	if first.Title != second.Title || first.Body != second.Body || first.Excerpt != second.Excerpt {
		t.Errorf("normalization diverged: %+v vs %+v", first, second)
	}
}
