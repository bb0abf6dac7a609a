package services

import (
	"os"
	"path/filepath"
	"testing"

	"clan-progression-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRankTable_MatchExternal_IDWins verifies a role-id match anywhere in the
// table beats a level match on an earlier step.
func TestRankTable_MatchExternal_IDWins(t *testing.T) {
	table := testLadder()

	// ID 3 is Sergeant's ref; level 2 would point at Corporal.
	rank, ok := table.MatchExternal(models.GroupRank{ID: 3, Level: 2})
	require.True(t, ok)
	assert.Equal(t, "Sergeant", rank.Name)
	assert.Equal(t, 3, rank.Order)
}

// TestRankTable_MatchExternal_LevelFallback verifies the coarse level resolves
// the step when no ref matches the platform role id.
func TestRankTable_MatchExternal_LevelFallback(t *testing.T) {
	table := testLadder()

	rank, ok := table.MatchExternal(models.GroupRank{ID: 999, Level: 45})
	require.True(t, ok)
	assert.Equal(t, "Commander", rank.Name)
	assert.Equal(t, 5, rank.Order)
}

// TestRankTable_MatchExternal_NoMatch verifies an unmapped platform rank
// resolves to nothing.
func TestRankTable_MatchExternal_NoMatch(t *testing.T) {
	table := testLadder()

	_, ok := table.MatchExternal(models.GroupRank{ID: 999, Level: 200})
	assert.False(t, ok)
}

// TestRankMatches covers both halves of the dual-mode comparison.
func TestRankMatches(t *testing.T) {
	commander := models.Rank{Order: 5, Name: "Commander", ExternalRankRef: 45}

	assert.True(t, RankMatches(commander, models.GroupRank{ID: 45, Level: 0}))
	assert.True(t, RankMatches(commander, models.GroupRank{ID: 999, Level: 45}))
	assert.False(t, RankMatches(commander, models.GroupRank{ID: 999, Level: 44}))
}

// TestRankTable_NextPointRank_SkipsAdminRanks verifies auto-promotion targets
// never include appointment-only steps.
func TestRankTable_NextPointRank_SkipsAdminRanks(t *testing.T) {
	table := testLadder()

	next, ok := table.NextPointRank(3)
	require.True(t, ok)
	assert.Equal(t, "Staff Sergeant", next.Name)

	// Order 5 is admin-only, so order 4 is the ceiling for point climbs.
	_, ok = table.NextPointRank(4)
	assert.False(t, ok)
}

// TestRankTable_NextRank_IncludesAdminRanks verifies the officer single-step
// walk covers the full ladder.
func TestRankTable_NextRank_IncludesAdminRanks(t *testing.T) {
	table := testLadder()

	next, ok := table.NextRank(4)
	require.True(t, ok)
	assert.Equal(t, "Commander", next.Name)

	_, ok = table.NextRank(5)
	assert.False(t, ok)
}

// TestRankTable_Lowest verifies new members start at the bottom step.
func TestRankTable_Lowest(t *testing.T) {
	bottom, ok := testLadder().Lowest()
	require.True(t, ok)
	assert.Equal(t, 1, bottom.Order)
	assert.Equal(t, "Private", bottom.Name)

	_, ok = NewRankTable(nil).Lowest()
	assert.False(t, ok)
}

// TestRankTable_SortsUnorderedInput verifies the table orders the ladder even
// when the config lists steps out of order.
func TestRankTable_SortsUnorderedInput(t *testing.T) {
	table := NewRankTable([]models.Rank{
		{Order: 3, Name: "C", ExternalRankRef: 3},
		{Order: 1, Name: "A", ExternalRankRef: 1},
		{Order: 2, Name: "B", ExternalRankRef: 2},
	})

	ranks := table.Ranks()
	require.Len(t, ranks, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{ranks[0].Order, ranks[1].Order, ranks[2].Order})
}

// TestLoadRankConfig_EmptyPathUsesDefaults verifies the built-in ladder backs
// an unconfigured deployment.
func TestLoadRankConfig_EmptyPathUsesDefaults(t *testing.T) {
	ranks, err := LoadRankConfig("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRanks, ranks)
}

// TestLoadRankConfig_ParsesFile verifies a custom ladder file round-trips.
func TestLoadRankConfig_ParsesFile(t *testing.T) {
	path := writeRankConfig(t, `
ranks:
  - order: 1
    name: Initiate
    points_required: 0
    external_rank_ref: 1
  - order: 2
    name: Veteran
    points_required: 40
    external_rank_ref: 2
  - order: 3
    name: Warlord
    external_rank_ref: 99
    admin_only: true
`)

	ranks, err := LoadRankConfig(path)
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.Equal(t, "Veteran", ranks[1].Name)
	assert.Equal(t, 40, ranks[1].PointsRequired)
	assert.True(t, ranks[2].AdminOnly)
	assert.Equal(t, 99, ranks[2].ExternalRankRef)
}

// TestLoadRankConfig_RejectsUnknownFields verifies a typo'd field fails the
// load instead of silently vanishing.
func TestLoadRankConfig_RejectsUnknownFields(t *testing.T) {
	path := writeRankConfig(t, `
ranks:
  - order: 1
    name: Initiate
    points_reqired: 10
    external_rank_ref: 1
`)

	_, err := LoadRankConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

// TestLoadRankConfig_Validation walks the rejected ladder shapes.
func TestLoadRankConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "no ranks",
			yaml: "ranks: []\n",
		},
		{
			name: "order below one",
			yaml: `
ranks:
  - order: 0
    name: Ghost
    external_rank_ref: 1
`,
		},
		{
			name: "missing name",
			yaml: `
ranks:
  - order: 1
    external_rank_ref: 1
`,
		},
		{
			name: "negative points",
			yaml: `
ranks:
  - order: 1
    name: Initiate
    points_required: -5
    external_rank_ref: 1
`,
		},
		{
			name: "duplicate order",
			yaml: `
ranks:
  - order: 1
    name: Initiate
    external_rank_ref: 1
  - order: 1
    name: Veteran
    external_rank_ref: 2
`,
		},
		{
			name: "duplicate name",
			yaml: `
ranks:
  - order: 1
    name: Initiate
    external_rank_ref: 1
  - order: 2
    name: Initiate
    external_rank_ref: 2
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRankConfig(writeRankConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

// TestLoadRankConfig_MissingFile verifies an unreadable path is an error, not
// a silent fallback.
func TestLoadRankConfig_MissingFile(t *testing.T) {
	_, err := LoadRankConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

// TestDefaultRanks_Shape pins the built-in ladder: dense point steps first,
// appointment steps after.
func TestDefaultRanks_Shape(t *testing.T) {
	table := NewRankTable(models.DefaultRanks)

	bottom, ok := table.Lowest()
	require.True(t, ok)
	assert.Equal(t, "Private", bottom.Name)
	assert.Zero(t, bottom.PointsRequired)

	// General (order 9) is the highest point rank.
	_, ok = table.NextPointRank(9)
	assert.False(t, ok)
	next, ok := table.NextRank(9)
	require.True(t, ok)
	assert.True(t, next.AdminOnly)
}

func writeRankConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}
