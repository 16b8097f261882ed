package dto

import (
	"fmt"

	"calbridge.app/bridge/internal/model"
)

type SettingsRequest struct {
	CalendarID string            `json:"calendar_id" binding:"required"`
	DatabaseID string            `json:"database_id" binding:"required"`
	SelfEmail  string            `json:"self_email"`
	Properties PropertySchemaDTO `json:"properties"`
}

type PropertySchemaDTO struct {
	Title       string            `json:"title"`
	Date        string            `json:"date"`
	Status      string            `json:"status"`
	GCalEventID string            `json:"gcal_event_id"`
	Optional    map[string]string `json:"optional,omitempty"`
}

type SettingsResponse struct {
	CalendarID string            `json:"calendar_id"`
	DatabaseID string            `json:"database_id"`
	SelfEmail  string            `json:"self_email"`
	Properties PropertySchemaDTO `json:"properties"`
}

func (r SettingsRequest) ToModel() (*model.Settings, error) {
	schema := model.DefaultPropertySchema()
	if r.Properties.Title != "" {
		schema.Title = r.Properties.Title
	}
	if r.Properties.Date != "" {
		schema.Date = r.Properties.Date
	}
	if r.Properties.Status != "" {
		schema.Status = r.Properties.Status
	}
	if r.Properties.GCalEventID != "" {
		schema.GCalEventID = r.Properties.GCalEventID
	}
	if r.Properties.Optional != nil {
		schema.Optional = make(map[model.SyncedField]string, len(r.Properties.Optional))
		for name, property := range r.Properties.Optional {
			field, err := model.ParseSyncedField(name)
			if err != nil {
				return nil, fmt.Errorf("optional property %q: %w", name, err)
			}
			schema.Optional[field] = property
		}
	}

	return &model.Settings{
		CalendarID: r.CalendarID,
		DatabaseID: r.DatabaseID,
		SelfEmail:  r.SelfEmail,
		Properties: schema,
	}, nil
}

func SettingsFrom(s *model.Settings) SettingsResponse {
	optional := make(map[string]string, len(s.Properties.Optional))
	for field, property := range s.Properties.Optional {
		optional[string(field)] = property
	}
	return SettingsResponse{
		CalendarID: s.CalendarID,
		DatabaseID: s.DatabaseID,
		SelfEmail:  s.SelfEmail,
		Properties: PropertySchemaDTO{
			Title:       s.Properties.Title,
			Date:        s.Properties.Date,
			Status:      s.Properties.Status,
			GCalEventID: s.Properties.GCalEventID,
			Optional:    optional,
		},
	}
}
