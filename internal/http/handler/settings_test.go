package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"calbridge.app/bridge/internal/http/handler"
	"calbridge.app/bridge/internal/model"
)

var _ = Describe("SettingsHandler", func() {
	var (
		router   *gin.Engine
		settings *fakeSettingsStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		settings = &fakeSettingsStore{}
		h := handler.NewSettingsHandler(settings)
		router.GET("/settings", h.Get)
		router.PUT("/settings", h.Put)
	})

	It("returns not found before configuration", func() {
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("stores valid settings with defaulted property names", func() {
		body, _ := json.Marshal(gin.H{
			"calendar_id": "work@group.calendar.google.com",
			"database_id": "db-99",
			"self_email":  "me@example.com",
		})
		req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(settings.putCalls).To(Equal(1))
		Expect(settings.settings.CalendarID).To(Equal("work@group.calendar.google.com"))
		Expect(settings.settings.Properties.Title).To(Equal("Name"))
	})

	It("rejects settings with an unknown optional field", func() {
		body, _ := json.Marshal(gin.H{
			"calendar_id": "primary",
			"database_id": "db-99",
			"properties": gin.H{
				"optional": gin.H{"priority": "Priority"},
			},
		})
		req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(settings.putCalls).To(Equal(0))
	})

	It("rejects settings without a database id", func() {
		body, _ := json.Marshal(gin.H{"calendar_id": "primary"})
		req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(settings.putCalls).To(Equal(0))
	})

	It("round-trips stored settings", func() {
		settings.settings = &model.Settings{
			CalendarID: "primary",
			DatabaseID: "db-1",
			SelfEmail:  "me@example.com",
			Properties: model.DefaultPropertySchema(),
		}

		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["calendar_id"]).To(Equal("primary"))
		Expect(resp["database_id"]).To(Equal("db-1"))
	})
})
