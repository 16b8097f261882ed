package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/trace"

	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/service"
	"calbridge.app/bridge/internal/store"
)

// eventSchema describes the envelope Notion delivers for automation
// webhooks. Anything that doesn't match is rejected before we look at
// the entity, so malformed or unexpected payloads never reach the queue.
const eventSchema = `{
	"type": "object",
	"required": ["type", "entity"],
	"properties": {
		"type": {"type": "string", "minLength": 1},
		"entity": {
			"type": "object",
			"required": ["id", "type"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"type": {"type": "string"}
			}
		}
	}
}`

type NotionWebhookHandler struct {
	channels      service.ChannelManager
	subscriptions store.WebhookSubscriptionStore
	producer      queue.Producer
	schema        *jsonschema.Schema
	secret        string
}

// NewNotionWebhookHandler builds the handler. When secret is non-empty it is
// the HMAC key for every delivery; otherwise the handshake token captured
// during verification is used.
func NewNotionWebhookHandler(channels service.ChannelManager, subscriptions store.WebhookSubscriptionStore, producer queue.Producer, secret string) (*NotionWebhookHandler, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("parsing notion event schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("notion-event.json", doc); err != nil {
		return nil, fmt.Errorf("adding notion event schema: %w", err)
	}
	schema, err := compiler.Compile("notion-event.json")
	if err != nil {
		return nil, fmt.Errorf("compiling notion event schema: %w", err)
	}

	return &NotionWebhookHandler{
		channels:      channels,
		subscriptions: subscriptions,
		producer:      producer,
		schema:        schema,
		secret:        secret,
	}, nil
}

type notionEventPayload struct {
	Type   string `json:"type"`
	Entity struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"entity"`
}

// HandleEvent receives Notion webhook deliveries. The first delivery on
// a new subscription is a verification handshake carrying a token that
// doubles as the HMAC key for every event after it.
func (h *NotionWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sub, err := h.subscriptions.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no active subscription"})
			return
		}
		slog.ErrorContext(ctx, "failed to load notion subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate event"})
		return
	}

	var handshake struct {
		VerificationToken string `json:"verification_token"`
	}
	if err := json.Unmarshal(body, &handshake); err == nil && handshake.VerificationToken != "" {
		// The handshake is only honored while verification is pending. Once
		// the subscription is verified the token is our HMAC key, and an
		// unauthenticated body must not be allowed to replace it.
		if sub.Verified {
			slog.WarnContext(ctx, "ignoring handshake for verified subscription",
				"subscription_id", sub.SubscriptionID)
			c.Status(http.StatusOK)
			return
		}
		if err := h.channels.VerifySubscription(ctx, handshake.VerificationToken); err != nil {
			slog.ErrorContext(ctx, "failed to verify notion subscription", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify subscription"})
			return
		}
		slog.InfoContext(ctx, "notion subscription verified")
		c.Status(http.StatusOK)
		return
	}

	key := h.secret
	if key == "" {
		key = sub.VerificationToken
	}
	signature := c.GetHeader("X-Notion-Signature")
	if !validSignature(body, key, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.schema.Validate(inst); err != nil {
		slog.WarnContext(ctx, "notion event failed schema validation", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var payload notionEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Entity.Type != "page" {
		slog.InfoContext(ctx, "ignoring non-page notion event",
			"event_type", payload.Type,
			"entity_type", payload.Entity.Type,
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "entity type not supported"})
		return
	}

	task := queue.Task{
		TaskType: queue.TaskTypeNotionPage,
		PageID:   payload.Entity.ID,
		Attempt:  1,
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		task.TraceID = &traceID
	}

	if err := h.producer.Enqueue(ctx, task); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue notion page sync",
			"error", err,
			"page_id", payload.Entity.ID,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync"})
		return
	}

	slog.InfoContext(ctx, "notion event accepted",
		"event_type", payload.Type,
		"page_id", payload.Entity.ID,
	)
	c.Status(http.StatusOK)
}

func validSignature(body []byte, token, header string) bool {
	if token == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
