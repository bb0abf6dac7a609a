package workers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"clan-progression-service/models"
	"clan-progression-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler keeps log records so a test can assert on what a worker
// reported.
type captureHandler struct {
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) count(level slog.Level, substr string) int {
	n := 0
	for _, r := range h.records {
		if r.Level == level && strings.Contains(r.Message, substr) {
			n++
		}
	}
	return n
}

type stubDirectory struct {
	ranks []models.GroupRank
	err   error
}

func (d *stubDirectory) FetchRank(context.Context, string) (models.GroupRank, error) {
	return models.GroupRank{}, nil
}

func (d *stubDirectory) PushRank(context.Context, string, int) error { return nil }

func (d *stubDirectory) ListRanks(context.Context) ([]models.GroupRank, error) {
	return d.ranks, d.err
}

func (d *stubDirectory) VerifyCredentials(context.Context) error { return nil }

func auditLadder(t *testing.T, group services.GroupDirectory, ranks []models.Rank) *captureHandler {
	t.Helper()
	h := &captureHandler{}
	w := NewLadderAuditWorker(group, services.NewRankTable(ranks), 0, slog.New(h))
	w.audit(context.Background())
	return h
}

// TestLadderAudit_FlagsUnmappedSteps verifies a ladder step whose external
// ref resolves to nothing on the platform is warned about, once per step.
func TestLadderAudit_FlagsUnmappedSteps(t *testing.T) {
	group := &stubDirectory{ranks: []models.GroupRank{
		{ID: 1, Level: 1, Name: "Private"},
		{ID: 2, Level: 2, Name: "Corporal"},
	}}
	ladder := []models.Rank{
		{Order: 1, Name: "Private", ExternalRankRef: 1},
		{Order: 2, Name: "Corporal", ExternalRankRef: 2},
		{Order: 3, Name: "Sergeant", ExternalRankRef: 99}, // renamed away on the platform
	}

	h := auditLadder(t, group, ladder)
	assert.Equal(t, 1, h.count(slog.LevelWarn, "no matching group rank"))
	assert.Equal(t, 1, h.count(slog.LevelWarn, "found drift"))
}

// TestLadderAudit_CleanWhenAllStepsResolve verifies a fully mapped ladder
// reports clean, counting level fallback matches as resolved.
func TestLadderAudit_CleanWhenAllStepsResolve(t *testing.T) {
	group := &stubDirectory{ranks: []models.GroupRank{
		{ID: 1, Level: 1},
		{ID: 555, Level: 2}, // id renumbered, level still matches
	}}
	ladder := []models.Rank{
		{Order: 1, Name: "Private", ExternalRankRef: 1},
		{Order: 2, Name: "Corporal", ExternalRankRef: 2},
	}

	h := auditLadder(t, group, ladder)
	assert.Zero(t, h.count(slog.LevelWarn, "no matching group rank"))
	assert.Equal(t, 1, h.count(slog.LevelInfo, "audit clean"))
}

// TestLadderAudit_PlatformErrorIsLoggedNotFatal verifies a dead roster call
// skips the pass without panicking.
func TestLadderAudit_PlatformErrorIsLoggedNotFatal(t *testing.T) {
	group := &stubDirectory{err: errors.New("status 502")}
	ladder := []models.Rank{{Order: 1, Name: "Private", ExternalRankRef: 1}}

	h := auditLadder(t, group, ladder)
	require.Equal(t, 1, h.count(slog.LevelError, "audit failed"))
	assert.Zero(t, h.count(slog.LevelWarn, "no matching group rank"))
}
