package translate

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/notion"
)

// FromNotion maps a database row onto the neutral model using the
// configured property names. ok=false means skip, with the same semantics
// as FromGoogle.
func FromNotion(ctx context.Context, page *notion.Page, schema model.PropertySchema) (*model.Event, bool) {
	if page == nil || page.ID == "" {
		return nil, false
	}

	title := notion.Plain(page.Properties[schema.Title].Title)
	dateProp := page.Properties[schema.Date].Date

	if title == "" || dateProp == nil || dateProp.Start == "" {
		slog.WarnContext(ctx, "skipping malformed notion page",
			"page_id", page.ID,
			"has_title", title != "",
			"has_date", dateProp != nil,
		)
		return nil, false
	}

	start, end, ok := parseNotionDate(dateProp)
	if !ok {
		slog.WarnContext(ctx, "skipping notion page with unparseable date", "page_id", page.ID)
		return nil, false
	}

	e := &model.Event{
		SourceID:     page.ID,
		NotionPageID: page.ID,
		GCalEventID:  notion.Plain(page.Properties[schema.GCalEventID].RichText),
		Start:        start,
		End:          end,
		Title:        title,
		Status:       notionStatus(page.Properties[schema.Status].Select),
	}

	if name, ok := schema.PropertyFor(model.FieldDescription); ok {
		e.Description = notion.Plain(page.Properties[name].RichText)
	}
	if name, ok := schema.PropertyFor(model.FieldLocation); ok {
		e.Location = notion.Plain(page.Properties[name].RichText)
	}
	if name, ok := schema.PropertyFor(model.FieldOrganizer); ok {
		e.Organizer = notion.Plain(page.Properties[name].RichText)
	}
	if name, ok := schema.PropertyFor(model.FieldConferenceLink); ok {
		if url := page.Properties[name].URL; url != nil {
			e.ConferenceLink = *url
		}
	}
	if name, ok := schema.PropertyFor(model.FieldVisibility); ok {
		if sel := page.Properties[name].Select; sel != nil {
			e.Visibility = notionVisibility(sel.Name)
		}
	}
	if name, ok := schema.PropertyFor(model.FieldColor); ok {
		if sel := page.Properties[name].Select; sel != nil {
			e.Color = sel.Name
		}
	}
	if name, ok := schema.PropertyFor(model.FieldReminders); ok {
		e.Reminders = parseReminders(notion.Plain(page.Properties[name].RichText))
	}
	if name, ok := schema.PropertyFor(model.FieldAttendees); ok {
		for _, sel := range page.Properties[name].MultiSelect {
			if sel.Name != "" {
				e.Attendees = append(e.Attendees, sel.Name)
			}
		}
	}

	return e, true
}

// ToNotion builds the full property payload for a create or update,
// including every enabled optional field that has a value.
func ToNotion(e *model.Event, schema model.PropertySchema) map[string]notion.Property {
	props := map[string]notion.Property{
		schema.Title:       notion.NewTitle(e.Title),
		schema.Date:        notionDate(e),
		schema.Status:      notion.NewSelect(statusLabel(e.Status)),
		schema.GCalEventID: notion.NewRichText(e.GCalEventID),
	}

	for _, field := range model.AllSyncedFields() {
		if name, prop, ok := FieldProperty(e, field, schema); ok {
			props[name] = prop
		}
	}

	return props
}

// FieldProperty is the per-variant extractor behind the closed SyncedField
// enumeration: it returns the target property name and value for one
// optional field, or ok=false when the field is disabled in the schema or
// the event has nothing to write. Backfill builds its sparse patches from
// exactly this.
func FieldProperty(e *model.Event, field model.SyncedField, schema model.PropertySchema) (string, notion.Property, bool) {
	name, enabled := schema.PropertyFor(field)
	if !enabled {
		return "", notion.Property{}, false
	}

	switch field {
	case model.FieldDescription:
		if e.Description == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewRichText(e.Description), true
	case model.FieldLocation:
		if e.Location == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewRichText(e.Location), true
	case model.FieldReminders:
		if len(e.Reminders) == 0 {
			return "", notion.Property{}, false
		}
		return name, notion.NewRichText(formatReminders(e.Reminders)), true
	case model.FieldAttendees:
		if len(e.Attendees) == 0 {
			return "", notion.Property{}, false
		}
		return name, notion.NewMultiSelect(e.Attendees), true
	case model.FieldOrganizer:
		if e.Organizer == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewRichText(e.Organizer), true
	case model.FieldConferenceLink:
		if e.ConferenceLink == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewURL(e.ConferenceLink), true
	case model.FieldRecurrence:
		if e.Recurrence == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewRichText(e.Recurrence), true
	case model.FieldColor:
		if e.Color == "" {
			return "", notion.Property{}, false
		}
		return name, notion.NewSelect(e.Color), true
	case model.FieldVisibility:
		if e.Visibility == "" || e.Visibility == model.VisibilityDefault {
			return "", notion.Property{}, false
		}
		return name, notion.NewSelect(string(e.Visibility)), true
	default:
		return "", notion.Property{}, false
	}
}

// notionDate renders the event window. Calendar all-day ends are exclusive
// while Notion date-only ends are inclusive, so the end date shifts back a
// day on write; single-day events omit the end entirely.
func notionDate(e *model.Event) notion.Property {
	if e.AllDay() {
		start := e.Start.UTC().Format(dateOnly)
		endDay := e.End.UTC().AddDate(0, 0, -1)
		if endDay.Format(dateOnly) == start {
			return notion.NewDate(start, nil)
		}
		end := endDay.Format(dateOnly)
		return notion.NewDate(start, &end)
	}
	end := e.End.UTC().Format(time.RFC3339)
	return notion.NewDate(e.Start.UTC().Format(time.RFC3339), &end)
}

// parseNotionDate reverses notionDate, restoring exclusive all-day ends so
// a round-tripped all-day event still lands on UTC midnights.
func parseNotionDate(d *notion.DateValue) (time.Time, time.Time, bool) {
	if len(d.Start) == len(dateOnly) {
		start, err := time.ParseInLocation(dateOnly, d.Start, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end := start.AddDate(0, 0, 1)
		if d.End != nil {
			inclusive, err := time.ParseInLocation(dateOnly, *d.End, time.UTC)
			if err != nil {
				return time.Time{}, time.Time{}, false
			}
			end = inclusive.AddDate(0, 0, 1)
		}
		return start, end, true
	}

	start, err := time.Parse(time.RFC3339, d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end := start.Add(time.Hour)
	if d.End != nil {
		parsed, err := time.Parse(time.RFC3339, *d.End)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	return start.UTC(), end.UTC(), true
}

func notionStatus(sel *notion.SelectValue) model.EventStatus {
	if sel == nil {
		return model.EventStatusConfirmed
	}
	switch strings.ToLower(sel.Name) {
	case "tentative":
		return model.EventStatusTentative
	case "cancelled", "canceled":
		return model.EventStatusCancelled
	default:
		return model.EventStatusConfirmed
	}
}

func notionVisibility(name string) model.Visibility {
	switch strings.ToLower(name) {
	case "public":
		return model.VisibilityPublic
	case "private":
		return model.VisibilityPrivate
	default:
		return model.VisibilityDefault
	}
}

func statusLabel(s model.EventStatus) string {
	switch s {
	case model.EventStatusTentative:
		return "Tentative"
	case model.EventStatusCancelled:
		return "Cancelled"
	default:
		return "Confirmed"
	}
}

func formatReminders(minutes []int) string {
	parts := make([]string, 0, len(minutes))
	for _, m := range minutes {
		parts = append(parts, strconv.Itoa(m))
	}
	return strings.Join(parts, ", ")
}

func parseReminders(raw string) []int {
	if raw == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}
