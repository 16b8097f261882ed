package notion

import "encoding/json"

// Page is the subset of the Notion page object the sync engine reads and
// writes. Property values are kept close to the wire shape; the translate
// package maps them onto the neutral event model using the configured
// property names.
type Page struct {
	ID             string              `json:"id"`
	Archived       bool                `json:"archived"`
	InTrash        bool                `json:"in_trash,omitempty"`
	Properties     map[string]Property `json:"properties"`
	LastEditedTime string              `json:"last_edited_time,omitempty"`
}

type Property struct {
	Type        string       `json:"type,omitempty"`
	Title       []RichText   `json:"title,omitempty"`
	RichText    []RichText   `json:"rich_text,omitempty"`
	Date        *DateValue   `json:"date,omitempty"`
	Select      *SelectValue `json:"select,omitempty"`
	MultiSelect []SelectValue `json:"multi_select,omitempty"`
	URL         *string      `json:"url,omitempty"`
	Number      *float64     `json:"number,omitempty"`
	Checkbox    *bool        `json:"checkbox,omitempty"`
}

type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

// DateValue carries either date-only ("2006-01-02") or full RFC 3339
// strings; date-only is how Notion represents all-day ranges.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

type SelectValue struct {
	Name string `json:"name"`
}

// Plain flattens rich text into its concatenated plain content.
func Plain(rt []RichText) string {
	var out string
	for _, r := range rt {
		if r.PlainText != "" {
			out += r.PlainText
		} else if r.Text != nil {
			out += r.Text.Content
		}
	}
	return out
}

func NewTitle(s string) Property {
	return Property{Title: []RichText{{Type: "text", Text: &TextContent{Content: s}}}}
}

func NewRichText(s string) Property {
	if s == "" {
		return Property{RichText: []RichText{}}
	}
	return Property{RichText: []RichText{{Type: "text", Text: &TextContent{Content: s}}}}
}

func NewDate(start string, end *string) Property {
	return Property{Date: &DateValue{Start: start, End: end}}
}

func NewSelect(name string) Property {
	return Property{Select: &SelectValue{Name: name}}
}

func NewMultiSelect(names []string) Property {
	values := make([]SelectValue, 0, len(names))
	for _, n := range names {
		values = append(values, SelectValue{Name: n})
	}
	return Property{MultiSelect: values}
}

func NewURL(u string) Property {
	if u == "" {
		return Property{URL: nil}
	}
	return Property{URL: &u}
}

func NewNumber(n float64) Property {
	return Property{Number: &n}
}

// Subscription is the stored result of registering a webhook endpoint.
// Notion has no status-query API for these; local state is authoritative.
type Subscription struct {
	ID         string `json:"id"`
	DatabaseID string `json:"database_id"`
}

// apiError is Notion's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createPageRequest struct {
	Parent     parentRef           `json:"parent"`
	Properties map[string]Property `json:"properties"`
}

type parentRef struct {
	DatabaseID string `json:"database_id"`
}

type updatePageRequest struct {
	Properties map[string]Property `json:"properties,omitempty"`
	Archived   *bool               `json:"archived,omitempty"`
}

type createSubscriptionRequest struct {
	ParentID   string   `json:"parent_id"`
	ParentType string   `json:"parent_type"`
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types,omitempty"`
}

type queryDatabaseRequest struct {
	StartCursor string          `json:"start_cursor,omitempty"`
	PageSize    int             `json:"page_size,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
}

type queryDatabaseResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}
