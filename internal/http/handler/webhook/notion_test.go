package webhook_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"calbridge.app/bridge/internal/http/handler/webhook"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/queue"
)

func sign(body []byte, token string) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("NotionWebhookHandler", func() {
	var (
		router        *gin.Engine
		manager       *fakeChannelManager
		subscriptions *fakeSubscriptionStore
		producer      *fakeProducer
		secret        string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		manager = &fakeChannelManager{}
		subscriptions = &fakeSubscriptionStore{
			sub: &model.WebhookSubscription{
				SubscriptionID:    "sub-1",
				DatabaseID:        "db-1",
				VerificationToken: "secret-token",
				Verified:          true,
			},
		}
		producer = &fakeProducer{}
		secret = ""
	})

	JustBeforeEach(func() {
		router = gin.New()
		h, err := webhook.NewNotionWebhookHandler(manager, subscriptions, producer, secret)
		Expect(err).NotTo(HaveOccurred())
		router.POST("/webhooks/notion", h.HandleEvent)
	})

	deliver := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/notion", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Notion-Signature", signature)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("completes the verification handshake while the subscription is pending", func() {
		subscriptions.sub.VerificationToken = ""
		subscriptions.sub.Verified = false
		body := []byte(`{"verification_token": "fresh-token"}`)

		w := deliver(body, "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(manager.verifiedTokens).To(Equal([]string{"fresh-token"}))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("ignores a handshake once the subscription is verified", func() {
		body := []byte(`{"verification_token": "attacker-token"}`)

		w := deliver(body, "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(manager.verifiedTokens).To(BeEmpty())
	})

	It("rejects a handshake when no subscription exists", func() {
		subscriptions.sub = nil
		body := []byte(`{"verification_token": "orphan-token"}`)

		w := deliver(body, "")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(manager.verifiedTokens).To(BeEmpty())
	})

	It("enqueues a page sync for a signed page event", func() {
		body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

		w := deliver(body, sign(body, "secret-token"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(producer.tasks).To(HaveLen(1))
		Expect(producer.tasks[0].TaskType).To(Equal(queue.TaskTypeNotionPage))
		Expect(producer.tasks[0].PageID).To(Equal("page-42"))
	})

	It("rejects events with a bad signature", func() {
		body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

		w := deliver(body, sign(body, "wrong-token"))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("rejects events with no signature header", func() {
		body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

		w := deliver(body, "")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("rejects events when no subscription exists", func() {
		subscriptions.sub = nil
		body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

		w := deliver(body, sign(body, "secret-token"))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("rejects payloads missing the entity", func() {
		body := []byte(`{"type": "page.properties_updated"}`)

		w := deliver(body, sign(body, "secret-token"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("acknowledges non-page entities without enqueueing", func() {
		body := []byte(`{"type": "database.schema_updated", "entity": {"id": "db-1", "type": "database"}}`)

		w := deliver(body, sign(body, "secret-token"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(producer.tasks).To(BeEmpty())
	})

	Context("with a configured webhook secret", func() {
		BeforeEach(func() {
			secret = "env-secret"
		})

		It("verifies signatures against the secret instead of the handshake token", func() {
			body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

			w := deliver(body, sign(body, "env-secret"))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(producer.tasks).To(HaveLen(1))
		})

		It("rejects signatures keyed by the handshake token", func() {
			body := []byte(`{"type": "page.properties_updated", "entity": {"id": "page-42", "type": "page"}}`)

			w := deliver(body, sign(body, "secret-token"))

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(producer.tasks).To(BeEmpty())
		})
	})
})
