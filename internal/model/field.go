package model

import "fmt"

// SyncedField enumerates the optional event fields that can be toggled on
// per deployment. The set is closed: adding a field means adding a variant
// here plus an extractor in the service layer, checked at compile time
// rather than dispatched on free-form strings.
type SyncedField string

const (
	FieldDescription    SyncedField = "description"
	FieldLocation       SyncedField = "location"
	FieldReminders      SyncedField = "reminders"
	FieldAttendees      SyncedField = "attendees"
	FieldOrganizer      SyncedField = "organizer"
	FieldConferenceLink SyncedField = "conference_link"
	FieldRecurrence     SyncedField = "recurrence"
	FieldColor          SyncedField = "color"
	FieldVisibility     SyncedField = "visibility"
)

// AllSyncedFields lists every variant, in a stable order.
func AllSyncedFields() []SyncedField {
	return []SyncedField{
		FieldDescription,
		FieldLocation,
		FieldReminders,
		FieldAttendees,
		FieldOrganizer,
		FieldConferenceLink,
		FieldRecurrence,
		FieldColor,
		FieldVisibility,
	}
}

// ParseSyncedField validates a field name coming in over the API.
func ParseSyncedField(s string) (SyncedField, error) {
	f := SyncedField(s)
	for _, known := range AllSyncedFields() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown synced field %q", s)
}
