package model

// PropertySchema names the document-store properties each event field maps
// to. Core properties are always present; optional fields without an entry
// are disabled for sync.
type PropertySchema struct {
	Title       string                 `json:"title"`
	Date        string                 `json:"date"`
	Status      string                 `json:"status"`
	GCalEventID string                 `json:"gcal_event_id"`
	Optional    map[SyncedField]string `json:"optional,omitempty"`
}

// DefaultPropertySchema matches a freshly provisioned database.
func DefaultPropertySchema() PropertySchema {
	return PropertySchema{
		Title:       "Name",
		Date:        "Date",
		Status:      "Status",
		GCalEventID: "GCal Event ID",
		Optional: map[SyncedField]string{
			FieldDescription: "Description",
			FieldLocation:    "Location",
		},
	}
}

// FieldEnabled reports whether the optional field has a target property.
func (s PropertySchema) FieldEnabled(f SyncedField) bool {
	_, ok := s.Optional[f]
	return ok
}

// PropertyFor returns the configured property name for an optional field.
func (s PropertySchema) PropertyFor(f SyncedField) (string, bool) {
	name, ok := s.Optional[f]
	return name, ok
}

// Settings is the read-only configuration the engine consumes. It is
// resolved by the settings store; the engine never writes it.
type Settings struct {
	CalendarID string         `json:"calendar_id"`
	DatabaseID string         `json:"database_id"`
	SelfEmail  string         `json:"self_email"`
	Properties PropertySchema `json:"properties"`
}
