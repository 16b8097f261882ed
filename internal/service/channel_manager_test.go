package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/service"
)

var _ = Describe("ChannelManager", func() {
	var (
		ctx      context.Context
		cal      *mockCalendarClient
		doc      *mockNotionClient
		channels *mockChannelStore
		subs     *mockSubscriptionStore
		settings *mockSettingsStore
		mgr      service.ChannelManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = &mockCalendarClient{}
		doc = &mockNotionClient{}
		channels = &mockChannelStore{}
		subs = &mockSubscriptionStore{}
		settings = &mockSettingsStore{}

		mgr = service.NewChannelManager(cal, doc, channels, subs, settings)
	})

	Describe("EnsureChannel", func() {
		Context("with no stored channel", func() {
			It("registers and persists a new one", func() {
				channel, err := mgr.EnsureChannel(ctx, "https://bridge.example.com/webhooks/google")
				Expect(err).NotTo(HaveOccurred())
				Expect(channel.ChannelID).NotTo(BeEmpty())
				Expect(cal.watchCalls).To(Equal(1))
				Expect(channels.saveCalls).To(Equal(1))
			})
		})

		Context("with an active channel", func() {
			It("returns it without touching the remote", func() {
				channels.channel = &model.WebhookChannel{
					ChannelID:  "chan-live",
					ResourceID: "res-live",
					CalendarID: "primary",
					Expiration: time.Now().Add(48 * time.Hour),
				}

				channel, err := mgr.EnsureChannel(ctx, "https://bridge.example.com/webhooks/google")
				Expect(err).NotTo(HaveOccurred())
				Expect(channel.ChannelID).To(Equal("chan-live"))
				Expect(cal.watchCalls).To(BeZero())
			})
		})

		Context("with a channel bound to a different calendar", func() {
			It("stops it and registers a replacement", func() {
				channels.channel = &model.WebhookChannel{
					ChannelID:  "chan-other",
					ResourceID: "res-other",
					CalendarID: "someone-else@example.com",
					Expiration: time.Now().Add(48 * time.Hour),
				}

				channel, err := mgr.EnsureChannel(ctx, "https://bridge.example.com/webhooks/google")
				Expect(err).NotTo(HaveOccurred())
				Expect(channel.ChannelID).NotTo(Equal("chan-other"))
				Expect(cal.stopWatchCalls).To(Equal(1))
				Expect(cal.watchCalls).To(Equal(1))
			})
		})

		Context("with an expired channel whose remote stop fails", func() {
			It("still registers the replacement", func() {
				channels.channel = &model.WebhookChannel{
					ChannelID:  "chan-dead",
					ResourceID: "res-dead",
					CalendarID: "primary",
					Expiration: time.Now().Add(-time.Hour),
				}
				cal.stopWatchFn = func(_ context.Context, _, _ string) error {
					return errors.New("channel not found")
				}

				channel, err := mgr.EnsureChannel(ctx, "https://bridge.example.com/webhooks/google")
				Expect(err).NotTo(HaveOccurred())
				Expect(channel.ChannelID).NotTo(Equal("chan-dead"))
				Expect(cal.watchCalls).To(Equal(1))
			})
		})
	})

	Describe("RenewChannel", func() {
		It("registers the new channel before stopping the old one", func() {
			channels.channel = &model.WebhookChannel{
				ChannelID:  "chan-old",
				ResourceID: "res-old",
				CalendarID: "primary",
				Expiration: time.Now().Add(2 * time.Hour),
			}
			var order []string
			cal.watchFn = func(_ context.Context, _ string) (*model.WebhookChannel, error) {
				order = append(order, "watch")
				return &model.WebhookChannel{
					ChannelID:  "chan-new",
					ResourceID: "res-new",
					CalendarID: "primary",
					Expiration: time.Now().Add(7 * 24 * time.Hour),
				}, nil
			}
			cal.stopWatchFn = func(_ context.Context, channelID, _ string) error {
				order = append(order, "stop:"+channelID)
				return nil
			}

			channel, err := mgr.RenewChannel(ctx, "https://bridge.example.com/webhooks/google")
			Expect(err).NotTo(HaveOccurred())
			Expect(channel.ChannelID).To(Equal("chan-new"))
			Expect(order).To(Equal([]string{"watch", "stop:chan-old"}))
			Expect(channels.channel.ChannelID).To(Equal("chan-new"))
		})

		It("keeps notifications flowing when registration fails", func() {
			channels.channel = &model.WebhookChannel{
				ChannelID:  "chan-old",
				ResourceID: "res-old",
				CalendarID: "primary",
				Expiration: time.Now().Add(2 * time.Hour),
			}
			cal.watchFn = func(_ context.Context, _ string) (*model.WebhookChannel, error) {
				return nil, errors.New("quota exceeded")
			}

			_, err := mgr.RenewChannel(ctx, "https://bridge.example.com/webhooks/google")
			Expect(err).To(HaveOccurred())
			Expect(cal.stopWatchCalls).To(BeZero())
			Expect(channels.channel.ChannelID).To(Equal("chan-old"))
		})
	})

	Describe("ChannelStatus", func() {
		It("reports none without a stored channel", func() {
			state, channel, err := mgr.ChannelStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(model.ChannelStateNone))
			Expect(channel).To(BeNil())
		})

		It("reports near expiry inside the renewal window", func() {
			channels.channel = &model.WebhookChannel{
				ChannelID:  "chan-1",
				CalendarID: "primary",
				Expiration: time.Now().Add(time.Hour),
			}

			state, _, err := mgr.ChannelStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(model.ChannelStateNearExpiry))

			due, err := mgr.NeedsRenewal(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(due).To(BeTrue())
		})
	})

	Describe("StopChannel", func() {
		It("tears down the stored channel", func() {
			channels.channel = &model.WebhookChannel{
				ChannelID:  "chan-1",
				ResourceID: "res-1",
				CalendarID: "primary",
				Expiration: time.Now().Add(48 * time.Hour),
			}

			Expect(mgr.StopChannel(ctx)).To(Succeed())
			Expect(cal.stopWatchCalls).To(Equal(1))
			Expect(channels.deleteCalls).To(Equal(1))
		})

		It("is a no-op without a channel", func() {
			Expect(mgr.StopChannel(ctx)).To(Succeed())
			Expect(cal.stopWatchCalls).To(BeZero())
		})
	})

	Describe("EnsureSubscription", func() {
		It("creates one when none exists", func() {
			sub, err := mgr.EnsureSubscription(ctx, "https://bridge.example.com/webhooks/notion")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.SubscriptionID).To(Equal("sub-1"))
			Expect(sub.DatabaseID).To(Equal("db-1"))
			Expect(sub.Verified).To(BeFalse())
			Expect(doc.createSubscriptionCalls).To(Equal(1))
		})

		It("returns the existing subscription for the configured database", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-old", DatabaseID: "db-1", Verified: true}

			sub, err := mgr.EnsureSubscription(ctx, "https://bridge.example.com/webhooks/notion")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.SubscriptionID).To(Equal("sub-old"))
			Expect(doc.createSubscriptionCalls).To(BeZero())
		})

		It("replaces a subscription bound to a different database", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-old", DatabaseID: "db-other"}
			doc.createSubscriptionFn = func(_ context.Context, databaseID, _ string) (*notion.Subscription, error) {
				return &notion.Subscription{ID: "sub-new", DatabaseID: databaseID}, nil
			}

			sub, err := mgr.EnsureSubscription(ctx, "https://bridge.example.com/webhooks/notion")
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.SubscriptionID).To(Equal("sub-new"))
			Expect(doc.deleteSubscriptionCalls).To(Equal(1))
		})
	})

	Describe("VerifySubscription", func() {
		It("stores the token and marks the subscription verified", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-1", DatabaseID: "db-1"}

			Expect(mgr.VerifySubscription(ctx, "secret-token")).To(Succeed())
			Expect(subs.sub.Verified).To(BeTrue())
			Expect(subs.sub.VerificationToken).To(Equal("secret-token"))
			Expect(subs.sub.VerifiedAt).NotTo(BeNil())
		})

		It("never un-verifies on a repeated handshake", func() {
			verifiedAt := time.Now().Add(-time.Hour).UTC()
			subs.sub = &model.WebhookSubscription{
				SubscriptionID:    "sub-1",
				DatabaseID:        "db-1",
				Verified:          true,
				VerificationToken: "old-token",
				VerifiedAt:        &verifiedAt,
			}

			Expect(mgr.VerifySubscription(ctx, "new-token")).To(Succeed())
			Expect(subs.sub.Verified).To(BeTrue())
			Expect(subs.sub.VerificationToken).To(Equal("new-token"))
			Expect(*subs.sub.VerifiedAt).To(Equal(verifiedAt))
		})

		It("fails when no subscription exists", func() {
			Expect(mgr.VerifySubscription(ctx, "token")).NotTo(Succeed())
		})
	})

	Describe("SubscriptionStatus", func() {
		It("returns nil when nothing is registered", func() {
			active, sub, err := mgr.SubscriptionStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
			Expect(sub).To(BeNil())
		})

		It("reports a verified subscription on the configured database as active", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-1", DatabaseID: "db-1", Verified: true}

			active, sub, err := mgr.SubscriptionStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeTrue())
			Expect(sub.SubscriptionID).To(Equal("sub-1"))
		})

		It("reports a pending subscription as inactive but registered", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-1", DatabaseID: "db-1"}

			active, sub, err := mgr.SubscriptionStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
			Expect(sub).NotTo(BeNil())
		})

		It("reports a subscription bound to another database as absent", func() {
			subs.sub = &model.WebhookSubscription{SubscriptionID: "sub-old", DatabaseID: "db-other", Verified: true}

			active, sub, err := mgr.SubscriptionStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
			Expect(sub).To(BeNil())
		})
	})
})
