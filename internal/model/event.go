package model

import "time"

// EventStatus mirrors the lifecycle states both remote systems understand.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusTentative EventStatus = "tentative"
	EventStatusCancelled EventStatus = "cancelled"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityDefault Visibility = "default"
)

// Event is the neutral representation shared by both sync directions.
// It is rebuilt on every fetch from a remote system and discarded once the
// triggering sync operation completes; durable sync state lives in
// SyncCursor, WebhookChannel, and ProgressRecord instead.
type Event struct {
	// SourceID is the id on the system the event was fetched from.
	SourceID string `json:"source_id"`

	// GCalEventID and NotionPageID are the cross-system link ids. A fully
	// linked event has both; an event known to only one system has exactly
	// one.
	GCalEventID  string `json:"gcal_event_id,omitempty"`
	NotionPageID string `json:"notion_page_id,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
	Status      EventStatus `json:"status"`

	// Optional fields, individually toggleable via settings.
	Reminders      []int      `json:"reminders,omitempty"` // minutes before start
	Attendees      []string   `json:"attendees,omitempty"` // ordered, self excluded
	Organizer      string     `json:"organizer,omitempty"`
	ConferenceLink string     `json:"conference_link,omitempty"`
	Recurrence     string     `json:"recurrence,omitempty"` // human-readable
	Color          string     `json:"color,omitempty"`
	Visibility     Visibility `json:"visibility,omitempty"`
}

// AllDay reports whether the event spans whole days. It is computed, never
// stored: an event is all-day iff both instants fall exactly on a UTC
// midnight boundary, and that in turn decides whether the translators emit
// date or date-time wire fields.
func (e *Event) AllDay() bool {
	return isUTCMidnight(e.Start) && isUTCMidnight(e.End)
}

// Linked reports whether the event carries both cross-system ids.
func (e *Event) Linked() bool {
	return e.GCalEventID != "" && e.NotionPageID != ""
}

func isUTCMidnight(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}
