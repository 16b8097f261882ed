// Package translate converts between the neutral event model and the two
// remote wire shapes. Translation never fails a batch: payloads that cannot
// be represented (synthetic read-only entries, records missing required
// fields) are skipped with a logged warning.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/rrule"
)

const dateOnly = "2006-01-02"

// notionPageIDKey is the private extended-property key carrying the
// cross-system link on calendar events.
const notionPageIDKey = "notionPageId"

// LinkedPageID returns the page id stamped on the calendar event, or ""
// when the event is unlinked. Cancelled tombstones keep their extended
// properties, so this works where full translation cannot.
func LinkedPageID(ev *calendar.Event) string {
	if ev == nil || ev.ExtendedProperties == nil {
		return ""
	}
	return ev.ExtendedProperties.Private[notionPageIDKey]
}

// FromGoogle maps a calendar event onto the neutral model. ok=false means
// skip: the entry is synthetic/read-only or missing required fields, and
// the caller must treat that as "ignore", never as a failure.
func FromGoogle(ctx context.Context, ev *calendar.Event, selfEmail string) (*model.Event, bool) {
	if ev == nil {
		return nil, false
	}

	// Provider-generated entries (birthdays, working location blocks) are
	// read-only; syncing them back would be rejected anyway.
	switch ev.EventType {
	case "birthday", "workingLocation", "outOfOffice":
		return nil, false
	}

	start, startOK := parseGoogleTime(ev.Start)
	end, endOK := parseGoogleTime(ev.End)
	if ev.Id == "" || ev.Summary == "" || !startOK || !endOK {
		slog.WarnContext(ctx, "skipping malformed calendar event",
			"event_id", ev.Id,
			"has_summary", ev.Summary != "",
			"has_start", startOK,
			"has_end", endOK,
		)
		return nil, false
	}

	e := &model.Event{
		SourceID:    ev.Id,
		GCalEventID: ev.Id,
		Start:       start,
		End:         end,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      googleStatus(ev.Status),
		Color:       ev.ColorId,
		Visibility:  googleVisibility(ev.Visibility),
	}

	if ev.ExtendedProperties != nil {
		e.NotionPageID = ev.ExtendedProperties.Private[notionPageIDKey]
	}

	if ev.Reminders != nil {
		for _, override := range ev.Reminders.Overrides {
			if override != nil && override.Minutes >= 0 {
				e.Reminders = append(e.Reminders, int(override.Minutes))
			}
		}
	}

	e.Attendees = attendeeNames(ev.Attendees, selfEmail)

	if ev.Organizer != nil {
		e.Organizer = displayName(ev.Organizer.DisplayName, ev.Organizer.Email)
	}

	e.ConferenceLink = conferenceLink(ev)

	if len(ev.Recurrence) > 0 {
		e.Recurrence = rrule.Describe(ev.Recurrence[0])
	}

	return e, true
}

// ToGoogle builds the wire payload for a create or full update. All-day
// events emit date-only fields; anything else emits RFC 3339 date-times.
// The Notion link id is stamped into private extended properties so a later
// pass recognizes the event as linked.
func ToGoogle(e *model.Event) *calendar.Event {
	ev := &calendar.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		Status:      string(e.Status),
	}

	if e.AllDay() {
		ev.Start = &calendar.EventDateTime{Date: e.Start.UTC().Format(dateOnly)}
		ev.End = &calendar.EventDateTime{Date: e.End.UTC().Format(dateOnly)}
	} else {
		ev.Start = &calendar.EventDateTime{DateTime: e.Start.UTC().Format(time.RFC3339)}
		ev.End = &calendar.EventDateTime{DateTime: e.End.UTC().Format(time.RFC3339)}
	}

	if e.NotionPageID != "" {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{notionPageIDKey: e.NotionPageID},
		}
	}

	if e.Visibility != "" && e.Visibility != model.VisibilityDefault {
		ev.Visibility = string(e.Visibility)
	}
	if e.Color != "" {
		ev.ColorId = e.Color
	}

	if len(e.Reminders) > 0 {
		overrides := make([]*calendar.EventReminder, 0, len(e.Reminders))
		for _, minutes := range e.Reminders {
			overrides = append(overrides, &calendar.EventReminder{Method: "popup", Minutes: int64(minutes)})
		}
		ev.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}

	return ev
}

// LinkPatch is the sparse payload that stamps the cross-system id on an
// existing calendar event.
func LinkPatch(notionPageID string) *calendar.Event {
	return &calendar.Event{
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{notionPageIDKey: notionPageID},
		},
	}
}

func parseGoogleTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation(dateOnly, edt.Date, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func googleStatus(status string) model.EventStatus {
	switch status {
	case "tentative":
		return model.EventStatusTentative
	case "cancelled":
		return model.EventStatusCancelled
	default:
		return model.EventStatusConfirmed
	}
}

func googleVisibility(v string) model.Visibility {
	switch v {
	case "public":
		return model.VisibilityPublic
	case "private", "confidential":
		return model.VisibilityPrivate
	default:
		return model.VisibilityDefault
	}
}

// attendeeNames extracts display names in order, excluding the
// authenticated identity. Whether a participant is "self" is decided by the
// injected email, not by provider flags.
func attendeeNames(attendees []*calendar.EventAttendee, selfEmail string) []string {
	var names []string
	for _, a := range attendees {
		if a == nil || a.Resource {
			continue
		}
		if selfEmail != "" && strings.EqualFold(a.Email, selfEmail) {
			continue
		}
		if name := displayName(a.DisplayName, a.Email); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// displayName falls back to the local part of the email when no display
// name exists.
func displayName(name, email string) string {
	if name != "" {
		return name
	}
	if local, _, found := strings.Cut(email, "@"); found {
		return local
	}
	return email
}

// conferenceLink prefers a video entry point among possibly several.
func conferenceLink(ev *calendar.Event) string {
	if ev.ConferenceData == nil {
		if ev.HangoutLink != "" {
			return ev.HangoutLink
		}
		return ""
	}

	var fallback string
	for _, ep := range ev.ConferenceData.EntryPoints {
		if ep == nil || ep.Uri == "" {
			continue
		}
		if ep.EntryPointType == "video" {
			return ep.Uri
		}
		if fallback == "" {
			fallback = ep.Uri
		}
	}
	if fallback == "" {
		fallback = ev.HangoutLink
	}
	return fallback
}
