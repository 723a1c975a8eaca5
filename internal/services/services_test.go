package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/classifier"
	"plantcare/internal/fertilizer"
	"plantcare/internal/models"
	"plantcare/internal/repository"
	"plantcare/internal/treatment"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

type fixture struct {
	db      *database.DB
	metrics *metrics.Collector
	logger  *logging.StructuredLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewNop()
	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:svc-%s?mode=memory&cache=shared", uuid.NewString()),
	}, logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Apply(context.Background(), db, repository.SessionSchema))

	return &fixture{db: db, metrics: m, logger: logger}
}

func (f *fixture) fertilizerService(t *testing.T) *FertilizerService {
	t.Helper()
	engine, err := fertilizer.NewEngine(fertilizer.MustDefaultReference())
	require.NoError(t, err)
	return NewFertilizerService(engine, f.logger, f.metrics)
}

func (f *fixture) historyService() *HistoryService {
	return NewHistoryService(repository.NewHistoryRepository(f.db, f.logger, f.metrics), f.logger, f.metrics)
}

func TestFertilizerServiceRecordsMetrics(t *testing.T) {
	f := newFixture(t)
	svc := f.fertilizerService(t)
	ctx := context.Background()

	rec := svc.Recommend(ctx, models.SoilReading{Nitrogen: 0, Phosphorus: 0, Potassium: 300, Crop: "tomato"})
	assert.Equal(t, []models.Nutrient{models.Nitrogen, models.Phosphorus}, rec.Deficiencies)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecommendationsTotal.WithLabelValues("nitrogen_deficient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NutrientStatusTotal.WithLabelValues("N", "deficient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NutrientStatusTotal.WithLabelValues("K", "excess")))

	assert.Len(t, svc.Catalogue(), 5)
	assert.Contains(t, svc.SupportedCrops(), "wheat")
}

func TestPredictionService(t *testing.T) {
	f := newFixture(t)
	kb, err := treatment.Default()
	require.NoError(t, err)
	history := f.historyService()
	svc := NewPredictionService(classifier.NewMockClassifier(f.metrics), kb, history, f.logger, f.metrics)
	ctx := context.Background()

	res, err := svc.Predict(ctx, []byte{3, 4}, "leaf.jpg")
	require.NoError(t, err)

	assert.Equal(t, "Orange___Haunglongbing_(Citrus_greening)", res.ClassName)
	assert.Equal(t, "Orange / Citrus", res.Plant)
	assert.False(t, res.IsHealthy)
	assert.Len(t, res.Top5, classifier.TopK)
	assert.Equal(t, fmt.Sprintf("%.1f%%", res.Confidence*100), res.ConfidencePct)
	assert.NotNil(t, res.Pesticides)

	entries, err := history.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.ClassName, entries[0].ClassName)
	assert.Equal(t, res.Confidence, entries[0].Confidence)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.HistoryEntries))

	assert.Len(t, svc.Classes(), 38)
	assert.False(t, svc.ModelLoaded())

	require.NoError(t, history.Clear(ctx))
	entries, err = history.Recent(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.HistoryEntries))
}

type unknownLabelClassifier struct{}

func (unknownLabelClassifier) ModelLoaded() bool { return true }
func (unknownLabelClassifier) Classify(context.Context, []byte) (models.Prediction, error) {
	return models.Prediction{ClassName: "Banana___Sigatoka", Confidence: 0.5}, nil
}

func TestPredictionServiceUnknownLabel(t *testing.T) {
	f := newFixture(t)
	kb, err := treatment.Default()
	require.NoError(t, err)
	svc := NewPredictionService(unknownLabelClassifier{}, kb, f.historyService(), f.logger, f.metrics)

	_, err = svc.Predict(context.Background(), []byte("x"), "leaf.png")
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, err.Error(), "Banana___Sigatoka")
}

type fakeChatModel struct {
	lastHistory []models.ChatMessage
	lastModel   string
	err         error
}

func (m *fakeChatModel) Complete(_ context.Context, model, system string, history []models.ChatMessage, message string) (Completion, error) {
	if m.err != nil {
		return Completion{}, m.err
	}
	m.lastHistory = history
	m.lastModel = model
	tokens := len(strings.Fields(message)) + 10
	return Completion{Text: "reply to " + message, TokensUsed: &tokens}, nil
}

func TestChatService(t *testing.T) {
	f := newFixture(t)
	repo := repository.NewChatRepository(f.db, f.logger)
	ctx := context.Background()

	t.Run("unavailable without model", func(t *testing.T) {
		svc := NewChatService(nil, repo, "gemini-2.0-flash", 10, f.logger)
		assert.False(t, svc.Available())
		_, err := svc.Send(ctx, "hello", "")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("conversation context", func(t *testing.T) {
		model := &fakeChatModel{}
		svc := NewChatService(model, repo, "gemini-2.0-flash", 1, f.logger)

		reply, err := svc.Send(ctx, "my tomato leaves curl", "")
		require.NoError(t, err)
		assert.Equal(t, "reply to my tomato leaves curl", reply.Message)
		assert.Equal(t, "gemini-2.0-flash", reply.Model)
		require.NotNil(t, reply.TokensUsed)
		assert.Empty(t, model.lastHistory)

		_, err = svc.Send(ctx, "what about potatoes", "gemini-1.5-pro")
		require.NoError(t, err)
		assert.Equal(t, "gemini-1.5-pro", model.lastModel)
		require.Len(t, model.lastHistory, 2)
		assert.Equal(t, models.RoleUser, model.lastHistory[0].Role)
		assert.Equal(t, models.RoleAssistant, model.lastHistory[1].Role)

		_, err = svc.Send(ctx, "third", "")
		require.NoError(t, err)
		// one turn of context is two messages
		assert.Len(t, model.lastHistory, 2)
		assert.Equal(t, "what about potatoes", model.lastHistory[0].Content)

		all, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 6)

		require.NoError(t, svc.Clear(ctx))
		all, err = svc.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("upstream error", func(t *testing.T) {
		svc := NewChatService(&fakeChatModel{err: errors.New("quota exceeded")}, repo, "m", 10, f.logger)
		_, err := svc.Send(ctx, "hi", "")
		assert.ErrorIs(t, err, models.ErrUpstream)

		all, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("stored conversation is capped", func(t *testing.T) {
		svc := NewChatService(&fakeChatModel{}, repo, "m", 10, f.logger)
		for i := 0; i < maxStoredChatMessages/2+3; i++ {
			_, err := svc.Send(ctx, fmt.Sprintf("q%d", i), "")
			require.NoError(t, err)
		}
		all, err := svc.History(ctx)
		require.NoError(t, err)
		require.Len(t, all, maxStoredChatMessages)
		assert.Equal(t, "q3", all[0].Content)
		assert.Equal(t, models.RoleUser, all[0].Role)
		assert.Equal(t, "reply to q3", all[1].Content)
		assert.Equal(t, fmt.Sprintf("reply to q%d", maxStoredChatMessages/2+2), all[len(all)-1].Content)
	})
}

func TestAdvisoryBatchService(t *testing.T) {
	f := newFixture(t)
	svc := NewAdvisoryBatchService(f.fertilizerService(t), f.logger)

	input := strings.Join([]string{
		"crop,nitrogen,phosphorus,potassium,temperature,humidity,rainfall",
		"Tomato,50,60,200,40,90,300",
		"Tomato,100,60,200,,,",
		"wheat,abc,10,10,,,",
		",10,10,10,,,",
		"Paddy,10,10,10,,120,",
		"Soybean,10,10,10",
		"Tomato,250,60,400,,,",
		"Tomato,-5,60,200,,,",
	}, "\n")

	var out strings.Builder
	res, err := svc.Process(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, 8, res.TotalRows)
	assert.Equal(t, 4, res.SuccessfulRows)
	assert.Equal(t, 4, res.FailedRows)
	assert.Equal(t, 2, res.Schedules["nitrogen_deficient"])
	assert.Equal(t, 1, res.Schedules["balanced"])
	assert.Equal(t, 1, res.Schedules["nitrogen_excess"])
	assert.Len(t, res.Errors, 4)

	var records []BatchRecord
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var rec BatchRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 8)
	assert.Equal(t, 2, records[0].Row)
	require.NotNil(t, records[0].Recommendation)
	assert.Contains(t, records[0].Recommendation.Notes, fertilizer.HeatAdvisory)
	assert.Equal(t, fertilizer.SoilTestAdvisory, records[1].Recommendation.Notes)
	assert.Contains(t, records[2].Error, "nitrogen must be a number")
	assert.Contains(t, records[3].Error, "crop is required")
	assert.Contains(t, records[4].Error, "humidity")

	// readings above the 0..100 request range classify as excess rather than failing
	require.NotNil(t, records[6].Recommendation)
	assert.Equal(t, []models.Nutrient{models.Nitrogen, models.Potassium}, records[6].Recommendation.Excesses)
	assert.Contains(t, records[7].Error, "nitrogen -5 is out of range")
}

func TestAdvisoryBatchServiceRejectsMissingColumns(t *testing.T) {
	f := newFixture(t)
	svc := NewAdvisoryBatchService(f.fertilizerService(t), f.logger)

	_, err := svc.Process(context.Background(), strings.NewReader("crop,nitrogen\nTomato,1\n"), &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phosphorus")
}
