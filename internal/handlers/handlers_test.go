package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/classifier"
	"plantcare/internal/fertilizer"
	"plantcare/internal/models"
	"plantcare/internal/repository"
	"plantcare/internal/services"
	"plantcare/internal/treatment"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

type stubChatModel struct{}

func (stubChatModel) Complete(_ context.Context, _, _ string, _ []models.ChatMessage, message string) (services.Completion, error) {
	tokens := 42
	return services.Completion{Text: "Apply neem oil for " + message, TokensUsed: &tokens}, nil
}

type panicClassifier struct{}

func (panicClassifier) ModelLoaded() bool { return true }
func (panicClassifier) Classify(context.Context, []byte) (models.Prediction, error) {
	panic("model exploded")
}

type testServer struct {
	router http.Handler
}

func newTestServer(t *testing.T, c classifier.Classifier, chatModel services.ChatModel) *testServer {
	t.Helper()
	logger := logging.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorWithRegistry("test", reg)

	db, err := database.Open(&database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:http-%s?mode=memory&cache=shared", uuid.NewString()),
	}, logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Apply(context.Background(), db, repository.SessionSchema))

	engine, err := fertilizer.NewEngine(fertilizer.MustDefaultReference())
	require.NoError(t, err)
	kb, err := treatment.Default()
	require.NoError(t, err)
	if c == nil {
		c = classifier.NewMockClassifier(m)
	}

	history := services.NewHistoryService(repository.NewHistoryRepository(db, logger, m), logger, m)
	svc := Services{
		Prediction: services.NewPredictionService(c, kb, history, logger, m),
		Fertilizer: services.NewFertilizerService(engine, logger, m),
		History:    history,
		Chat:       services.NewChatService(chatModel, repository.NewChatRepository(db, logger), "gemini-2.0-flash", 10, logger),
	}

	return &testServer{router: NewRouter(svc, RouterConfig{
		CORSOrigins: []string{"*"},
		ModelPath:   "mobilenetv2_best",
		Gatherer:    reg,
	}, logger, m)}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartImage(t *testing.T, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="leaf.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		checkValues func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:       "health",
			path:       "/health",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode(t, rec)
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, false, body["model_loaded"])
				assert.Equal(t, "mobilenetv2_best", body["model_path"])
				assert.Equal(t, float64(38), body["supported_classes"])
				assert.Equal(t, APIVersion, body["version"])
			},
		},
		{
			name:       "welcome",
			path:       "/",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode(t, rec)
				assert.Equal(t, "running", body["status"])
				assert.Len(t, body["supported_crops"], 14)
				assert.Contains(t, body["fertilizer_crops"], "tomato")
				assert.Contains(t, body["endpoints"], "fertilizer_recommend")
			},
		},
		{
			name:       "openapi document",
			path:       "/api/docs/openapi.json",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode(t, rec)
				paths := body["paths"].(map[string]interface{})
				assert.Contains(t, paths, "/api/predict")
				assert.Contains(t, paths, "/api/chat/history")
			},
		},
		{
			name:       "swagger ui",
			path:       "/docs",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				// html/template escapes the spec URL inside the script block.
				assert.Contains(t, rec.Body.String(), "<title>PlantCare AI API Documentation</title>")
				assert.Contains(t, rec.Body.String(), "swagger-ui")
				assert.Contains(t, rec.Body.String(), "openapi.json")
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			},
		},
		{
			name:       "metrics",
			path:       "/metrics",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), "test_")
			},
		},
		{
			name:       "unknown route",
			path:       "/api/weather",
			wantStatus: http.StatusNotFound,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, false, decode(t, rec)["success"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			tt.checkValues(t, rec)
		})
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = s.do(t, http.MethodOptions, "/api/fertilizers/recommend", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestUnroutedResponsesCarryHeaders(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "unknown path",
			method:     http.MethodGet,
			path:       "/api/weather",
			wantStatus: http.StatusNotFound,
			wantMsg:    "resource not found: /api/weather",
		},
		{
			name:       "unknown path with unusual method",
			method:     http.MethodPatch,
			path:       "/api/weather",
			wantStatus: http.StatusNotFound,
			wantMsg:    "resource not found: /api/weather",
		},
		{
			name:       "wrong method on known path",
			method:     http.MethodPut,
			path:       "/api/history",
			wantStatus: http.StatusMethodNotAllowed,
			wantMsg:    "method PUT not allowed on /api/history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, nil, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestPredictEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name        string
		contentType string
		data        []byte
		wantStatus  int
		checkValues func(t *testing.T, body map[string]interface{})
	}{
		{
			name:        "mock prediction",
			contentType: "image/jpeg",
			data:        []byte{3, 4},
			wantStatus:  http.StatusOK,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
				assert.True(t, strings.HasPrefix(body["message"].(string), "Disease detection complete — "))
				data := body["data"].(map[string]interface{})
				assert.Equal(t, "Orange___Haunglongbing_(Citrus_greening)", data["class_name"])
				assert.Len(t, data["top5"], classifier.TopK)
				assert.Regexp(t, `^\d+\.\d%$`, data["confidence_pct"])
			},
		},
		{
			name:        "unsupported media type",
			contentType: "application/pdf",
			data:        []byte("%PDF"),
			wantStatus:  http.StatusUnsupportedMediaType,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body["message"], "application/pdf")
			},
		},
		{
			name:        "empty upload",
			contentType: "image/png",
			data:        []byte{},
			wantStatus:  http.StatusBadRequest,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Uploaded file is empty.", body["message"])
			},
		},
		{
			name:        "too large",
			contentType: "image/png",
			data:        make([]byte, MaxUploadBytes+1),
			wantStatus:  http.StatusRequestEntityTooLarge,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(http.StatusRequestEntityTooLarge), body["code"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartImage(t, tt.contentType, tt.data)
			rec := s.do(t, http.MethodPost, "/api/predict", body, ct)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			tt.checkValues(t, decode(t, rec))
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/predict", []byte("x"), "text/plain")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("history records the scan", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/history", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(1), body["count"])

		rec = s.do(t, http.MethodDelete, "/api/history", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "History cleared.", decode(t, rec)["message"])

		body = decode(t, s.do(t, http.MethodGet, "/api/history", nil, ""))
		assert.Equal(t, float64(0), body["count"])
		assert.NotNil(t, body["data"])
	})

	t.Run("classes", func(t *testing.T) {
		body := decode(t, s.do(t, http.MethodGet, "/api/classes", nil, ""))
		assert.Equal(t, float64(38), body["count"])
		assert.Equal(t, classifier.ClassNames[0], body["classes"].([]interface{})[0])
	})
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t, panicClassifier{}, nil)

	body, ct := multipartImage(t, "image/png", []byte{1})
	rec := s.do(t, http.MethodPost, "/api/predict", body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestRecommendEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		checkValues func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "nitrogen deficient tomato",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "Tomato", "temperature": 40}`,
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Fertilizer recommendation generated. Always validate with a soil health card.", body["message"])
				data := body["data"].(map[string]interface{})
				assert.Equal(t, []interface{}{"N", "K"}, data["deficiencies"])
				assert.Equal(t, []interface{}{}, data["excesses"])
				assert.Equal(t, fertilizer.HeatAdvisory, data["notes"])
			},
		},
		{
			name:       "zero readings are accepted",
			body:       `{"nitrogen": 0, "phosphorus": 0, "potassium": 0, "crop": "wheat"}`,
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Len(t, data["recommended_fertilizers"], 3)
			},
		},
		{
			name:       "missing potassium",
			body:       `{"nitrogen": 50, "phosphorus": 60, "crop": "Tomato"}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "potassium is required", body["message"])
			},
		},
		{
			name:       "nitrogen out of range",
			body:       `{"nitrogen": 150, "phosphorus": 60, "potassium": 100, "crop": "Tomato"}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "nitrogen must be less than or equal to 100", body["message"])
			},
		},
		{
			name:       "negative rainfall",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "Tomato", "rainfall": -1}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "rainfall must be greater than or equal to 0", body["message"])
			},
		},
		{
			name:       "blank crop",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "   "}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "crop must not be blank", body["message"])
			},
		},
		{
			name:       "wrong json type",
			body:       `{"nitrogen": "lots", "phosphorus": 60, "potassium": 100, "crop": "Tomato"}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body["message"], "nitrogen")
			},
		},
		{
			name:       "malformed json",
			body:       `{"nitrogen": `,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["success"])
			},
		},
		{
			name:       "trailing json value",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "Tomato"} {"crop": "rice"}`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "request body must contain a single JSON object", body["message"])
			},
		},
		{
			name:       "trailing garbage",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "Tomato"}xyz`,
			wantStatus: http.StatusUnprocessableEntity,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "request body must contain a single JSON object", body["message"])
			},
		},
		{
			name:       "trailing whitespace is fine",
			body:       "{\"nitrogen\": 90, \"phosphorus\": 60, \"potassium\": 100, \"crop\": \"Tomato\"}\n\n",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
			},
		},
		{
			name:       "oversized body",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "` + strings.Repeat("a", maxJSONBody) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, fmt.Sprintf("request body must not exceed %d bytes", maxJSONBody), body["message"])
			},
		},
		{
			name:       "oversized trailing data",
			body:       `{"nitrogen": 50, "phosphorus": 60, "potassium": 100, "crop": "Tomato"}` + strings.Repeat(" ", maxJSONBody),
			wantStatus: http.StatusRequestEntityTooLarge,
			checkValues: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, fmt.Sprintf("request body must not exceed %d bytes", maxJSONBody), body["message"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/fertilizers/recommend", []byte(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			tt.checkValues(t, decode(t, rec))
		})
	}

	t.Run("catalogue", func(t *testing.T) {
		body := decode(t, s.do(t, http.MethodGet, "/api/fertilizers", nil, ""))
		assert.Equal(t, float64(5), body["count"])
		first := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Contains(t, first, "best_for")
	})
}

func TestChatEndpoints(t *testing.T) {
	t.Run("unavailable without api key", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		rec := s.do(t, http.MethodPost, "/api/chat", []byte(`{"message": "hello"}`), "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "GEMINI_API_KEY")
	})

	t.Run("conversation", func(t *testing.T) {
		s := newTestServer(t, nil, stubChatModel{})

		rec := s.do(t, http.MethodPost, "/api/chat", []byte(`{"message": "aphids"}`), "application/json")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, "Apply neem oil for aphids", body["message"])
		assert.Equal(t, "gemini-2.0-flash", body["model"])
		assert.Equal(t, float64(42), body["tokens_used"])

		hist := decode(t, s.do(t, http.MethodGet, "/api/chat/history", nil, ""))
		assert.Equal(t, float64(2), hist["count"])

		rec = s.do(t, http.MethodDelete, "/api/chat/history", nil, "")
		assert.Equal(t, "Chat history cleared.", decode(t, rec)["message"])
	})

	t.Run("message length", func(t *testing.T) {
		s := newTestServer(t, nil, stubChatModel{})

		rec := s.do(t, http.MethodPost, "/api/chat", []byte(`{"message": ""}`), "application/json")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		long := fmt.Sprintf(`{"message": %q}`, strings.Repeat("a", 2001))
		rec = s.do(t, http.MethodPost, "/api/chat", []byte(long), "application/json")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "message length must be at most 2000 characters", decode(t, rec)["message"])
	})
}
