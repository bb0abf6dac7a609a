package services

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"clan-progression-service/models"

	"gopkg.in/yaml.v3"
)

// RankTable is an in-memory view of the ladder, sorted ascending by order.
type RankTable struct {
	ranks   []models.Rank
	byOrder map[int]models.Rank
}

func NewRankTable(ranks []models.Rank) *RankTable {
	sorted := make([]models.Rank, len(ranks))
	copy(sorted, ranks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	byOrder := make(map[int]models.Rank, len(sorted))
	for _, r := range sorted {
		byOrder[r.Order] = r
	}
	return &RankTable{ranks: sorted, byOrder: byOrder}
}

// Ranks returns the ladder in ascending order. Callers must not mutate it.
func (t *RankTable) Ranks() []models.Rank {
	return t.ranks
}

func (t *RankTable) ByOrder(order int) (models.Rank, bool) {
	r, ok := t.byOrder[order]
	return r, ok
}

// Lowest returns the bottom ladder step, where new members start.
func (t *RankTable) Lowest() (models.Rank, bool) {
	if len(t.ranks) == 0 {
		return models.Rank{}, false
	}
	return t.ranks[0], true
}

// RankMatches reports whether a ladder step corresponds to a platform rank
// descriptor: role id first, coarse level as fallback.
func RankMatches(r models.Rank, gr models.GroupRank) bool {
	return int64(r.ExternalRankRef) == gr.ID || r.ExternalRankRef == gr.Level
}

// MatchExternal resolves a platform rank descriptor to a ladder step. An id
// match anywhere in the table wins over a level match, so ladders renumbered
// on the platform keep resolving to the right step.
func (t *RankTable) MatchExternal(gr models.GroupRank) (models.Rank, bool) {
	for _, r := range t.ranks {
		if int64(r.ExternalRankRef) == gr.ID {
			return r, true
		}
	}
	for _, r := range t.ranks {
		if r.ExternalRankRef == gr.Level {
			return r, true
		}
	}
	return models.Rank{}, false
}

// NextPointRank returns the lowest point-earned rank strictly above the given
// order. Admin-only ranks are never auto-promotion targets.
func (t *RankTable) NextPointRank(currentOrder int) (models.Rank, bool) {
	for _, r := range t.ranks {
		if r.Order > currentOrder && !r.AdminOnly {
			return r, true
		}
	}
	return models.Rank{}, false
}

// NextRank returns the next ladder step in full order, admin-only steps
// included. Officers stepping a member up one rank use this.
func (t *RankTable) NextRank(currentOrder int) (models.Rank, bool) {
	for _, r := range t.ranks {
		if r.Order > currentOrder {
			return r, true
		}
	}
	return models.Rank{}, false
}

type rankConfigFile struct {
	Ranks []rankConfigEntry `yaml:"ranks"`
}

type rankConfigEntry struct {
	Order           int    `yaml:"order"`
	Name            string `yaml:"name"`
	PointsRequired  int    `yaml:"points_required"`
	ExternalRankRef int    `yaml:"external_rank_ref"`
	AdminOnly       bool   `yaml:"admin_only"`
}

// LoadRankConfig reads a ladder definition from a YAML file. An empty path
// falls back to the built-in default ladder.
func LoadRankConfig(path string) ([]models.Rank, error) {
	if path == "" {
		return models.DefaultRanks, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rank config: %w", err)
	}

	var file rankConfigFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typo'd fields
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rank config: %w", err)
	}

	if len(file.Ranks) == 0 {
		return nil, fmt.Errorf("rank config %s defines no ranks", path)
	}

	seenOrder := make(map[int]bool)
	seenName := make(map[string]bool)
	ranks := make([]models.Rank, 0, len(file.Ranks))
	for _, e := range file.Ranks {
		switch {
		case e.Order < 1:
			return nil, fmt.Errorf("rank %q: order must be >= 1", e.Name)
		case e.Name == "":
			return nil, fmt.Errorf("rank order %d: name is required", e.Order)
		case e.PointsRequired < 0:
			return nil, fmt.Errorf("rank %q: points_required must not be negative", e.Name)
		case seenOrder[e.Order]:
			return nil, fmt.Errorf("rank %q: duplicate order %d", e.Name, e.Order)
		case seenName[e.Name]:
			return nil, fmt.Errorf("duplicate rank name %q", e.Name)
		}
		seenOrder[e.Order] = true
		seenName[e.Name] = true
		ranks = append(ranks, models.Rank{
			Order:           e.Order,
			Name:            e.Name,
			PointsRequired:  e.PointsRequired,
			ExternalRankRef: e.ExternalRankRef,
			AdminOnly:       e.AdminOnly,
		})
	}
	return ranks, nil
}
