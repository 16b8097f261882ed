package service_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/service"
)

var _ = Describe("Historical", func() {
	var (
		ctx      context.Context
		cal      *mockCalendarClient
		doc      *mockNotionClient
		cursors  *mockCursorStore
		syncLogs *mockSyncLogStore
		progress *mockProgressStore
		settings *mockSettingsStore
		job      service.Historical
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = &mockCalendarClient{}
		doc = &mockNotionClient{}
		cursors = &mockCursorStore{}
		syncLogs = &mockSyncLogStore{}
		progress = newMockProgressStore()
		settings = &mockSettingsStore{}

		Expect(id.Init(1)).To(Succeed())

		rec := service.NewReconciler(cal, doc, cursors, syncLogs, settings)
		job = service.NewHistorical(cal, rec, progress, settings)
	})

	Describe("Preview", func() {
		It("rejects windows outside the allowed range", func() {
			_, err := job.Preview(ctx, 0)
			Expect(err).To(MatchError(service.ErrInvalidDays))
			_, err = job.Preview(ctx, 366)
			Expect(err).To(MatchError(service.ErrInvalidDays))
		})

		It("classifies the window without writing anything", func() {
			recurring := wireEvent("ev-3", "C", "")
			recurring.RecurringEventId = "ev-parent"
			cal.eventsInRangeFn = func(_ context.Context, min, max time.Time) ([]*calendar.Event, error) {
				Expect(max.Sub(min)).To(BeNumerically("~", 90*24*time.Hour, time.Minute))
				return []*calendar.Event{
					wireEvent("ev-1", "A", "page-a"),
					wireEvent("ev-2", "B", ""),
					recurring,
					{Id: "ev-4", Status: "cancelled"},
				}, nil
			}

			preview, err := job.Preview(ctx, 90)
			Expect(err).NotTo(HaveOccurred())
			Expect(preview.Total).To(Equal(3))
			Expect(preview.New).To(Equal(2))
			Expect(preview.AlreadyLinked).To(Equal(1))
			Expect(preview.Recurring).To(Equal(1))

			Expect(doc.createPageCalls).To(BeZero())
			Expect(doc.updatePageCalls).To(BeZero())
		})
	})

	Describe("Start", func() {
		It("rejects an invalid window without touching progress", func() {
			_, err := job.Start(ctx, 400)
			Expect(err).To(MatchError(service.ErrInvalidDays))
			Expect(progress.setCalls).To(BeZero())
		})

		It("rejects a second start while one is running", func() {
			_, err := job.Start(ctx, 30)
			Expect(err).NotTo(HaveOccurred())

			_, err = job.Start(ctx, 60)
			Expect(err).To(MatchError(service.ErrJobRunning))
			Expect(progress.records[model.JobKindHistorical].Days).To(Equal(30))
		})
	})

	Describe("Run", func() {
		It("updates linked events and creates pages for new ones, splitting the counters", func() {
			cal.eventsInRangeFn = func(_ context.Context, _, _ time.Time) ([]*calendar.Event, error) {
				return []*calendar.Event{
					wireEvent("ev-1", "A", "page-a"),
					wireEvent("ev-2", "B", ""),
					wireEvent("ev-3", "C", "page-c"),
				}, nil
			}

			_, err := job.Start(ctx, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Run(ctx)).To(Succeed())

			Expect(doc.updatePageCalls).To(Equal(2))
			Expect(doc.createPageCalls).To(Equal(1))

			record, _ := job.Status(ctx)
			Expect(record.Status).To(Equal(model.JobStatusCompleted))
			Expect(record.Total).To(Equal(3))
			Expect(record.Updated).To(Equal(2))
			Expect(record.Created).To(Equal(1))
			Expect(record.Errors).To(BeZero())
		})

		It("counts per-event failures without aborting", func() {
			cal.eventsInRangeFn = func(_ context.Context, _, _ time.Time) ([]*calendar.Event, error) {
				return []*calendar.Event{
					wireEvent("ev-1", "A", "page-a"),
					wireEvent("ev-2", "B", "page-b"),
				}, nil
			}
			doc.updatePageFn = func(_ context.Context, pageID string, _ map[string]notion.Property) error {
				if pageID == "page-a" {
					return fmt.Errorf("validation_error")
				}
				return nil
			}

			_, err := job.Start(ctx, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Run(ctx)).To(Succeed())

			record, _ := job.Status(ctx)
			Expect(record.Status).To(Equal(model.JobStatusCompleted))
			Expect(record.Errors).To(Equal(1))
			Expect(record.Updated).To(Equal(1))
		})

		It("stops at the next batch boundary after a cancel", func() {
			var events []*calendar.Event
			for i := 0; i < 120; i++ {
				events = append(events, wireEvent(fmt.Sprintf("ev-%d", i), "E", fmt.Sprintf("page-%d", i)))
			}
			cal.eventsInRangeFn = func(_ context.Context, _, _ time.Time) ([]*calendar.Event, error) {
				return events, nil
			}
			doc.updatePageFn = func(_ context.Context, _ string, _ map[string]notion.Property) error {
				if doc.updatePageCalls == 20 {
					Expect(job.Cancel(ctx)).To(Succeed())
				}
				return nil
			}

			_, err := job.Start(ctx, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Run(ctx)).To(Succeed())

			Expect(doc.updatePageCalls).To(Equal(50))
			record, _ := job.Status(ctx)
			Expect(record.Status).To(Equal(model.JobStatusCancelled))
			Expect(record.Processed).To(Equal(50))
		})

		It("fails when no job was started", func() {
			Expect(job.Run(ctx)).To(MatchError(service.ErrNotRunning))
		})
	})
})
