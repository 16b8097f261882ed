package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/gcal"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/retry"
	"calbridge.app/bridge/internal/service"
	"calbridge.app/bridge/internal/store"
)

func wireEvent(eventID, summary, pageID string) *calendar.Event {
	ev := &calendar.Event{
		Id:      eventID,
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: "2026-03-10T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2026-03-10T10:00:00Z"},
		Status:  "confirmed",
	}
	if pageID != "" {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{"notionPageId": pageID},
		}
	}
	return ev
}

func modelEvent(eventID, pageID string) *model.Event {
	return &model.Event{
		SourceID:     eventID,
		GCalEventID:  eventID,
		NotionPageID: pageID,
		Title:        "Standup",
		Start:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		End:          time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		Status:       model.EventStatusConfirmed,
	}
}

var _ = Describe("Reconciler", func() {
	var (
		ctx      context.Context
		cal      *mockCalendarClient
		doc      *mockNotionClient
		cursors  *mockCursorStore
		syncLogs *mockSyncLogStore
		settings *mockSettingsStore
		rec      service.Reconciler
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = &mockCalendarClient{}
		doc = &mockNotionClient{}
		cursors = &mockCursorStore{}
		syncLogs = &mockSyncLogStore{}
		settings = &mockSettingsStore{}

		Expect(id.Init(1)).To(Succeed())

		rec = service.NewReconciler(cal, doc, cursors, syncLogs, settings)
	})

	Describe("SyncToNotion", func() {
		Context("with a linked event", func() {
			It("updates the existing page and logs one entry", func() {
				err := rec.SyncToNotion(ctx, modelEvent("ev-1", "page-1"))
				Expect(err).NotTo(HaveOccurred())

				Expect(doc.updatePageCalls).To(Equal(1))
				Expect(doc.createPageCalls).To(BeZero())
				Expect(syncLogs.entries).To(HaveLen(1))
				Expect(syncLogs.entries[0].Operation).To(Equal(model.OperationUpdate))
				Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSuccess))
			})
		})

		Context("with an unlinked event", func() {
			It("creates a page and stamps the id back exactly once", func() {
				var stamped *calendar.Event
				cal.patchFn = func(_ context.Context, eventID string, ev *calendar.Event) (*calendar.Event, error) {
					Expect(eventID).To(Equal("ev-1"))
					stamped = ev
					return ev, nil
				}

				event := modelEvent("ev-1", "")
				Expect(rec.SyncToNotion(ctx, event)).To(Succeed())

				Expect(doc.createPageCalls).To(Equal(1))
				Expect(cal.patchCalls).To(Equal(1))
				Expect(event.NotionPageID).To(Equal("page-new"))
				Expect(stamped.ExtendedProperties.Private).To(HaveKeyWithValue("notionPageId", "page-new"))

				Expect(syncLogs.entries).To(HaveLen(1))
				Expect(syncLogs.entries[0].Operation).To(Equal(model.OperationCreate))
				Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSuccess))
			})

			It("treats a link stamp rejected for the event type as success", func() {
				cal.patchFn = func(_ context.Context, _ string, _ *calendar.Event) (*calendar.Event, error) {
					return nil, &googleapi.Error{
						Code: 403,
						Errors: []googleapi.ErrorItem{{Reason: "forbiddenForEventType"}},
					}
				}

				Expect(rec.SyncToNotion(ctx, modelEvent("ev-1", ""))).To(Succeed())
				Expect(syncLogs.entries).To(HaveLen(1))
				Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSuccess))
			})
		})

		Context("when the page write fails terminally", func() {
			It("logs a failed entry and returns the error", func() {
				doc.updatePageFn = func(_ context.Context, _ string, _ map[string]notion.Property) error {
					return &retry.HTTPError{StatusCode: 400, Code: "validation_error"}
				}

				err := rec.SyncToNotion(ctx, modelEvent("ev-1", "page-1"))
				Expect(err).To(HaveOccurred())
				Expect(doc.updatePageCalls).To(Equal(1))
				Expect(syncLogs.entries).To(HaveLen(1))
				Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeFailed))
			})
		})
	})

	Describe("SyncToCalendar", func() {
		Context("when the linked calendar event was deleted remotely", func() {
			It("creates a replacement, relinks the page, and logs a successful create", func() {
				cal.updateFn = func(_ context.Context, _ string, _ *calendar.Event) (*calendar.Event, error) {
					return nil, &googleapi.Error{Code: 410}
				}
				cal.insertFn = func(_ context.Context, ev *calendar.Event) (*calendar.Event, error) {
					ev.Id = "ev-replacement"
					return ev, nil
				}
				var relinked map[string]notion.Property
				doc.updatePageFn = func(_ context.Context, pageID string, props map[string]notion.Property) error {
					Expect(pageID).To(Equal("page-1"))
					relinked = props
					return nil
				}

				event := modelEvent("ev-stale", "page-1")
				Expect(rec.SyncToCalendar(ctx, event)).To(Succeed())

				Expect(cal.updateCalls).To(Equal(1))
				Expect(cal.insertCalls).To(Equal(1))
				Expect(event.GCalEventID).To(Equal("ev-replacement"))

				schema := model.DefaultPropertySchema()
				Expect(relinked).To(HaveKey(schema.GCalEventID))

				Expect(syncLogs.entries).To(HaveLen(1))
				Expect(syncLogs.entries[0].Operation).To(Equal(model.OperationCreate))
				Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSuccess))
			})
		})

		Context("with an unlinked event", func() {
			It("inserts and writes the event id back to the page", func() {
				cal.insertFn = func(_ context.Context, ev *calendar.Event) (*calendar.Event, error) {
					ev.Id = "ev-created"
					return ev, nil
				}

				event := modelEvent("", "page-1")
				event.GCalEventID = ""
				Expect(rec.SyncToCalendar(ctx, event)).To(Succeed())

				Expect(cal.insertCalls).To(Equal(1))
				Expect(doc.updatePageCalls).To(Equal(1))
				Expect(event.GCalEventID).To(Equal("ev-created"))
			})
		})
	})

	Describe("deletion propagation", func() {
		It("archives the linked page and logs the delete", func() {
			Expect(rec.DeleteFromNotion(ctx, modelEvent("ev-1", "page-1"))).To(Succeed())
			Expect(doc.archivePageCalls).To(Equal(1))
			Expect(syncLogs.entries).To(HaveLen(1))
			Expect(syncLogs.entries[0].Operation).To(Equal(model.OperationDelete))
			Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSuccess))
		})

		It("treats an already-archived page as skipped", func() {
			doc.archivePageFn = func(_ context.Context, _ string) error {
				return &retry.HTTPError{StatusCode: 404, Code: "object_not_found"}
			}

			Expect(rec.DeleteFromNotion(ctx, modelEvent("ev-1", "page-1"))).To(Succeed())
			Expect(syncLogs.entries).To(HaveLen(1))
			Expect(syncLogs.entries[0].Outcome).To(Equal(model.OutcomeSkipped))
		})

		It("does nothing for unlinked events", func() {
			Expect(rec.DeleteFromNotion(ctx, modelEvent("ev-1", ""))).To(Succeed())
			Expect(doc.archivePageCalls).To(BeZero())
			Expect(syncLogs.entries).To(BeEmpty())
		})
	})

	Describe("SyncFromCalendar", func() {
		Context("with a mixed batch", func() {
			It("updates linked events and creates pages for unlinked ones", func() {
				cal.changesSinceFn = func(_ context.Context, token string) (*gcal.ChangeSet, error) {
					return &gcal.ChangeSet{
						Events: []*calendar.Event{
							wireEvent("ev-1", "A", "page-a"),
							wireEvent("ev-2", "B", "page-b"),
							wireEvent("ev-3", "C", ""),
						},
						NextToken: "tok-2",
					}, nil
				}
				cursors.getFn = func(_ context.Context, _ model.SyncSource) (*model.SyncCursor, error) {
					return &model.SyncCursor{Source: model.SourceGoogleCalendar, Token: "tok-1"}, nil
				}
				var saved *model.SyncCursor
				cursors.setFn = func(_ context.Context, c *model.SyncCursor) error {
					saved = c
					return nil
				}

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())

				Expect(doc.updatePageCalls).To(Equal(2))
				Expect(doc.createPageCalls).To(Equal(1))
				Expect(cal.patchCalls).To(Equal(1))
				Expect(saved).NotTo(BeNil())
				Expect(saved.Token).To(Equal("tok-2"))
				Expect(syncLogs.entries).To(HaveLen(3))
			})
		})

		Context("when no cursor exists yet", func() {
			It("bootstraps the cursor from the full pass and goes incremental on the next one", func() {
				var stored *model.SyncCursor
				cursors.getFn = func(_ context.Context, _ model.SyncSource) (*model.SyncCursor, error) {
					if stored == nil {
						return nil, store.ErrNotFound
					}
					return stored, nil
				}
				cursors.setFn = func(_ context.Context, c *model.SyncCursor) error {
					stored = c
					return nil
				}
				cal.fullSyncFn = func(_ context.Context, min, max time.Time) (*gcal.ChangeSet, error) {
					Expect(max.After(min)).To(BeTrue())
					return &gcal.ChangeSet{
						Events:    []*calendar.Event{wireEvent("ev-1", "A", "page-a")},
						NextToken: "tok-boot",
					}, nil
				}
				var incrementalToken string
				cal.changesSinceFn = func(_ context.Context, token string) (*gcal.ChangeSet, error) {
					incrementalToken = token
					return &gcal.ChangeSet{NextToken: "tok-2"}, nil
				}

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())
				Expect(cal.fullSyncCalls).To(Equal(1))
				Expect(cal.changesCalls).To(BeZero())
				Expect(stored).NotTo(BeNil())
				Expect(stored.Token).To(Equal("tok-boot"))

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())
				Expect(cal.fullSyncCalls).To(Equal(1))
				Expect(cal.changesCalls).To(Equal(1))
				Expect(incrementalToken).To(Equal("tok-boot"))
				Expect(stored.Token).To(Equal("tok-2"))
			})
		})

		Context("when the sync token is rejected", func() {
			It("clears the cursor, refetches the full window, and persists the fresh token", func() {
				cursors.getFn = func(_ context.Context, _ model.SyncSource) (*model.SyncCursor, error) {
					return &model.SyncCursor{Source: model.SourceGoogleCalendar, Token: "tok-expired"}, nil
				}
				cal.changesSinceFn = func(_ context.Context, _ string) (*gcal.ChangeSet, error) {
					return &gcal.ChangeSet{TokenInvalid: true}, nil
				}
				cal.fullSyncFn = func(_ context.Context, min, max time.Time) (*gcal.ChangeSet, error) {
					Expect(max.After(min)).To(BeTrue())
					return &gcal.ChangeSet{
						Events:    []*calendar.Event{wireEvent("ev-1", "A", "page-a")},
						NextToken: "tok-fresh",
					}, nil
				}
				var saved *model.SyncCursor
				cursors.setFn = func(_ context.Context, c *model.SyncCursor) error {
					saved = c
					return nil
				}

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())

				Expect(cursors.clearCalls).To(Equal(1))
				Expect(cal.fullSyncCalls).To(Equal(1))
				Expect(doc.updatePageCalls).To(Equal(1))
				Expect(saved).NotTo(BeNil())
				Expect(saved.Token).To(Equal("tok-fresh"))
			})
		})

		Context("with a cancelled linked event", func() {
			It("archives the page", func() {
				cancelled := &calendar.Event{
					Id:     "ev-gone",
					Status: "cancelled",
					ExtendedProperties: &calendar.EventExtendedProperties{
						Private: map[string]string{"notionPageId": "page-gone"},
					},
				}
				cal.changesSinceFn = func(_ context.Context, _ string) (*gcal.ChangeSet, error) {
					return &gcal.ChangeSet{Events: []*calendar.Event{cancelled}, NextToken: "tok-2"}, nil
				}
				cursors.getFn = func(_ context.Context, _ model.SyncSource) (*model.SyncCursor, error) {
					return &model.SyncCursor{Source: model.SourceGoogleCalendar, Token: "tok-1"}, nil
				}

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())
				Expect(doc.archivePageCalls).To(Equal(1))
			})
		})

		Context("when one event in the batch fails", func() {
			It("continues with the rest and still advances the cursor", func() {
				cal.changesSinceFn = func(_ context.Context, _ string) (*gcal.ChangeSet, error) {
					return &gcal.ChangeSet{
						Events:    []*calendar.Event{wireEvent("ev-1", "A", "page-a"), wireEvent("ev-2", "B", "page-b")},
						NextToken: "tok-2",
					}, nil
				}
				cursors.getFn = func(_ context.Context, _ model.SyncSource) (*model.SyncCursor, error) {
					return &model.SyncCursor{Source: model.SourceGoogleCalendar, Token: "tok-1"}, nil
				}
				doc.updatePageFn = func(_ context.Context, pageID string, _ map[string]notion.Property) error {
					if pageID == "page-a" {
						return &retry.HTTPError{StatusCode: 400, Code: "validation_error"}
					}
					return nil
				}
				var saved *model.SyncCursor
				cursors.setFn = func(_ context.Context, c *model.SyncCursor) error {
					saved = c
					return nil
				}

				Expect(rec.SyncFromCalendar(ctx)).To(Succeed())
				Expect(doc.updatePageCalls).To(Equal(2))
				Expect(saved.Token).To(Equal("tok-2"))
			})
		})
	})

	Describe("SyncNotionPage", func() {
		It("pushes a live page to the calendar", func() {
			schema := model.DefaultPropertySchema()
			doc.getPageFn = func(_ context.Context, pageID string) (*notion.Page, error) {
				return &notion.Page{
					ID: pageID,
					Properties: map[string]notion.Property{
						schema.Title:       notion.NewTitle("Planning"),
						schema.Date:        notion.NewDate("2026-03-10T09:00:00Z", strPtr("2026-03-10T10:00:00Z")),
						schema.GCalEventID: notion.NewRichText("ev-1"),
					},
				}, nil
			}

			Expect(rec.SyncNotionPage(ctx, "page-1")).To(Succeed())
			Expect(cal.updateCalls).To(Equal(1))
		})

		It("routes an archived page to calendar deletion", func() {
			schema := model.DefaultPropertySchema()
			doc.getPageFn = func(_ context.Context, pageID string) (*notion.Page, error) {
				return &notion.Page{
					ID:       pageID,
					Archived: true,
					Properties: map[string]notion.Property{
						schema.Title:       notion.NewTitle("Planning"),
						schema.GCalEventID: notion.NewRichText("ev-1"),
					},
				}, nil
			}

			Expect(rec.SyncNotionPage(ctx, "page-1")).To(Succeed())
			Expect(cal.deleteCalls).To(Equal(1))
		})

		It("ignores pages that vanished before the fetch", func() {
			doc.getPageFn = func(_ context.Context, _ string) (*notion.Page, error) {
				return nil, &retry.HTTPError{StatusCode: 404, Code: "object_not_found"}
			}

			Expect(rec.SyncNotionPage(ctx, "page-1")).To(Succeed())
			Expect(cal.updateCalls).To(BeZero())
			Expect(cal.deleteCalls).To(BeZero())
		})
	})
})

func strPtr(s string) *string { return &s }
