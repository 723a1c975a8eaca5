package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"plantcare/internal/fertilizer"
	"plantcare/internal/models"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

type RepositorySuite struct {
	suite.Suite
	ctx     context.Context
	db      *database.DB
	history HistoryRepository
	chat    ChatRepository
	ref     ReferenceRepository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	logger := logging.NewNop()
	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString()),
	}, logger, m)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(Apply(s.ctx, db, SessionSchema))
	s.Require().NoError(Apply(s.ctx, db, ReferenceSchema))

	s.history = NewHistoryRepository(db, logger, m)
	s.chat = NewChatRepository(db, logger)
	s.ref = NewReferenceRepository(db, logger)
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func entry(class string, at time.Time) *models.HistoryEntry {
	return &models.HistoryEntry{
		ID:           uuid.NewString(),
		Timestamp:    at,
		ClassName:    class,
		Plant:        "Tomato",
		Condition:    "Late Blight",
		IsHealthy:    false,
		Confidence:   0.9123,
		SeverityRisk: "High",
	}
}

func (s *RepositorySuite) TestHistory() {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Run("records newest first", func() {
		for i := 0; i < 3; i++ {
			s.Require().NoError(s.history.Record(s.ctx, entry(fmt.Sprintf("class-%d", i), base.Add(time.Duration(i)*time.Minute)), 500))
		}

		got, err := s.history.ListRecent(s.ctx, 100)
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal("class-2", got[0].ClassName)
		s.Equal("class-0", got[2].ClassName)
		s.True(got[0].Timestamp.Equal(base.Add(2 * time.Minute)))
		s.Equal(0.9123, got[0].Confidence)
		s.False(got[0].IsHealthy)
	})

	s.Run("trims to capacity", func() {
		for i := 0; i < 10; i++ {
			s.Require().NoError(s.history.Record(s.ctx, entry(fmt.Sprintf("bulk-%d", i), base), 5))
		}
		n, err := s.history.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(5, n)

		got, err := s.history.ListRecent(s.ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal("bulk-9", got[0].ClassName)
		s.Equal("bulk-8", got[1].ClassName)
	})

	s.Run("clear", func() {
		removed, err := s.history.Clear(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(5), removed)

		got, err := s.history.ListRecent(s.ctx, 100)
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})

	s.NoError(s.history.HealthCheck(s.ctx))
}

func (s *RepositorySuite) TestChat() {
	now := time.Now().UTC()
	s.Require().NoError(s.chat.Append(s.ctx, 0,
		models.ChatMessage{Role: models.RoleUser, Content: "first", Timestamp: now},
		models.ChatMessage{Role: models.RoleAssistant, Content: "second", Timestamp: now},
		models.ChatMessage{Role: models.RoleUser, Content: "third", Timestamp: now},
	))

	recent, err := s.chat.Recent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("second", recent[0].Content)
	s.Equal(models.RoleAssistant, recent[0].Role)
	s.Equal("third", recent[1].Content)

	all, err := s.chat.All(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	s.Require().NoError(s.chat.Clear(s.ctx))
	all, err = s.chat.All(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *RepositorySuite) TestChatTrim() {
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.chat.Append(s.ctx, 4,
			models.ChatMessage{Role: models.RoleUser, Content: fmt.Sprintf("q%d", i), Timestamp: now},
			models.ChatMessage{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i), Timestamp: now},
		))
	}

	all, err := s.chat.All(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal([]string{"q3", "a3", "q4", "a4"}, []string{all[0].Content, all[1].Content, all[2].Content, all[3].Content})

	s.Run("failed append keeps the conversation", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		err := s.chat.Append(ctx, 1,
			models.ChatMessage{Role: models.RoleUser, Content: "lost", Timestamp: now},
		)
		s.Error(err)

		all, err := s.chat.All(s.ctx)
		s.Require().NoError(err)
		s.Len(all, 4)
		s.Equal("q3", all[0].Content)
	})
}

func (s *RepositorySuite) TestReferenceSeedAndLoad() {
	want := fertilizer.MustDefaultReference()
	s.Require().NoError(s.ref.Seed(s.ctx, want))

	got, err := s.ref.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(want.Bands, got.Bands)
	s.Equal(want.Products, got.Products)
	s.Equal(want.Schedules, got.Schedules)
	s.Equal(want.Catalogue, got.Catalogue)

	// Seeding twice replaces rather than duplicates.
	s.Require().NoError(s.ref.Seed(s.ctx, want))
	again, err := s.ref.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(again.Catalogue, len(want.Catalogue))
}

func (s *RepositorySuite) TestReferenceLoadRejectsIncompleteData() {
	_, err := s.ref.Load(s.ctx)
	s.Error(err)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nCREATE TABLE b (y INT);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (x INT)" || got[1] != "CREATE TABLE b (y INT)" {
		t.Fatalf("unexpected statements: %q", got)
	}
}
