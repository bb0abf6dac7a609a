package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"clan-progression-service/models"
	"clan-progression-service/repository"

	"gorm.io/gorm"
)

// Shared test doubles for the service suite. The fakes return
// gorm.ErrRecordNotFound the way the real repository does, so the
// services' error mapping is exercised unchanged.

var (
	_ repository.Repository = (*fakeRepo)(nil)
	_ GroupDirectory        = (*fakeGroup)(nil)
	_ Granter               = (*fakeGrants)(nil)
	_ Notifier              = (*fakeNotifier)(nil)
	_ ScoreBoard            = (*fakeBoard)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLadder() *RankTable {
	return NewRankTable([]models.Rank{
		{Order: 1, Name: "Private", PointsRequired: 0, ExternalRankRef: 1},
		{Order: 2, Name: "Corporal", PointsRequired: 30, ExternalRankRef: 2},
		{Order: 3, Name: "Sergeant", PointsRequired: 60, ExternalRankRef: 3},
		{Order: 4, Name: "Staff Sergeant", PointsRequired: 100, ExternalRankRef: 4},
		{Order: 5, Name: "Commander", ExternalRankRef: 45, AdminOnly: true},
	})
}

func linked(id, account string, rankOrder, points int) *models.Member {
	return &models.Member{ExternalID: id, ExternalAccount: &account, RankOrder: rankOrder, Points: points}
}

func newTestRetryer() *Retryer {
	r := NewRetryer(3, time.Second, testLogger())
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func newTestSync(repo repository.Repository, group GroupDirectory, grants Granter, table *RankTable) *SyncService {
	s := NewSyncService(repo, group, grants, table, newTestRetryer(), 0, testLogger())
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func newTestPromotion(repo repository.Repository, group GroupDirectory, grants Granter, table *RankTable, notify Notifier) *PromotionService {
	retry := newTestRetryer()
	syncer := NewSyncService(repo, group, grants, table, retry, 0, testLogger())
	syncer.sleep = func(context.Context, time.Duration) error { return nil }
	return NewPromotionService(repo, group, grants, table, NewEligibility(table), syncer, retry, notify, testLogger())
}

// ---- repository ----

type fakeRepo struct {
	members map[string]*models.Member
	subs    map[uint]*models.Submission
	lastSub uint

	setRankCalls int
	adjustCalls  int
	setRankErr   error
	adjustErr    map[string]error
}

func newFakeRepo(members ...*models.Member) *fakeRepo {
	r := &fakeRepo{
		members:   make(map[string]*models.Member),
		subs:      make(map[uint]*models.Submission),
		adjustErr: make(map[string]error),
	}
	for _, m := range members {
		cp := *m
		r.members[m.ExternalID] = &cp
	}
	return r
}

func (r *fakeRepo) GetMember(_ context.Context, id string) (*models.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) GetMemberByAccount(_ context.Context, account string) (*models.Member, error) {
	for _, m := range r.members {
		if m.ExternalAccount != nil && *m.ExternalAccount == account {
			cp := *m
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateMember(_ context.Context, m *models.Member) error {
	cp := *m
	r.members[m.ExternalID] = &cp
	return nil
}

func (r *fakeRepo) UpdateMemberAccount(_ context.Context, id, account string) error {
	m, ok := r.members[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.ExternalAccount = &account
	return nil
}

func (r *fakeRepo) ListMembers(_ context.Context) ([]models.Member, error) {
	out := make([]models.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *fakeRepo) ListLinkedMembers(_ context.Context) ([]models.Member, error) {
	var out []models.Member
	for _, m := range r.members {
		if m.Linked() {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *fakeRepo) SetMemberRank(_ context.Context, id string, order int) error {
	r.setRankCalls++
	if r.setRankErr != nil {
		return r.setRankErr
	}
	m, ok := r.members[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.RankOrder = order
	return nil
}

func (r *fakeRepo) AdjustPoints(_ context.Context, id string, delta int) (*models.Member, error) {
	r.adjustCalls++
	if err := r.adjustErr[id]; err != nil {
		return nil, err
	}
	m, ok := r.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	m.Points += delta
	if m.Points < 0 {
		m.Points = 0
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) TopMembers(_ context.Context, limit int) ([]models.Member, error) {
	out, _ := r.ListMembers(context.Background())
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) Ranks(_ context.Context) ([]models.Rank, error) { return nil, nil }

func (r *fakeRepo) SeedRanks(_ context.Context, _ []models.Rank) error { return nil }

func (r *fakeRepo) CreateSubmission(_ context.Context, s *models.Submission) error {
	r.lastSub++
	s.ID = r.lastSub
	cp := *s
	r.subs[s.ID] = &cp
	return nil
}

func (r *fakeRepo) GetSubmission(_ context.Context, id uint) (*models.Submission, error) {
	s, ok := r.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) SaveSubmission(_ context.Context, s *models.Submission) error {
	cp := *s
	r.subs[s.ID] = &cp
	return nil
}

func (r *fakeRepo) PendingSubmissions(_ context.Context) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range r.subs {
		if s.Status == models.SubmissionPending {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- group platform ----

type pushCall struct {
	Account string
	Ref     int
}

type fakeGroup struct {
	ranks      map[string]models.GroupRank
	fetchErr   map[string]error
	fetchCalls int

	pushErr   error
	pushQueue []error
	pushes    []pushCall

	groupRanks []models.GroupRank
	listErr    error
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		ranks:    make(map[string]models.GroupRank),
		fetchErr: make(map[string]error),
	}
}

func (g *fakeGroup) FetchRank(_ context.Context, account string) (models.GroupRank, error) {
	g.fetchCalls++
	if err := g.fetchErr[account]; err != nil {
		return models.GroupRank{}, err
	}
	desc, ok := g.ranks[account]
	if !ok {
		return models.GroupRank{}, ErrNotInGroup
	}
	return desc, nil
}

func (g *fakeGroup) PushRank(_ context.Context, account string, ref int) error {
	g.pushes = append(g.pushes, pushCall{Account: account, Ref: ref})
	if len(g.pushQueue) > 0 {
		err := g.pushQueue[0]
		g.pushQueue = g.pushQueue[1:]
		return err
	}
	return g.pushErr
}

func (g *fakeGroup) ListRanks(_ context.Context) ([]models.GroupRank, error) {
	return g.groupRanks, g.listErr
}

func (g *fakeGroup) VerifyCredentials(_ context.Context) error { return nil }

// ---- grant service ----

type fakeGrants struct {
	held      map[string][]string
	grantErr  error
	revokeErr error
	heldErr   error
	ops       []string // "grant:<key>" / "revoke:<key>" in call order
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{held: make(map[string][]string)}
}

func (g *fakeGrants) Grant(_ context.Context, memberID, key string) error {
	g.ops = append(g.ops, "grant:"+key)
	if g.grantErr != nil {
		return g.grantErr
	}
	for _, k := range g.held[memberID] {
		if k == key {
			return nil
		}
	}
	g.held[memberID] = append(g.held[memberID], key)
	return nil
}

func (g *fakeGrants) Revoke(_ context.Context, memberID, key string) error {
	g.ops = append(g.ops, "revoke:"+key)
	if g.revokeErr != nil {
		return g.revokeErr
	}
	var kept []string
	for _, k := range g.held[memberID] {
		if k != key {
			kept = append(kept, k)
		}
	}
	g.held[memberID] = kept
	return nil
}

func (g *fakeGrants) Held(_ context.Context, memberID string) ([]string, error) {
	if g.heldErr != nil {
		return nil, g.heldErr
	}
	return append([]string(nil), g.held[memberID]...), nil
}

// ---- notifier + scoreboard ----

type fakeNotifier struct {
	promotions int
	desyncs    int
	filed      int
	resolved   int
	err        error
}

func (n *fakeNotifier) PromotionAnnounced(context.Context, string, models.PromotionResult) error {
	n.promotions++
	return n.err
}

func (n *fakeNotifier) DesyncReported(context.Context, string, models.PromotionResult) error {
	n.desyncs++
	return n.err
}

func (n *fakeNotifier) SubmissionFiled(context.Context, *models.Submission) error {
	n.filed++
	return n.err
}

func (n *fakeNotifier) SubmissionResolved(context.Context, *models.Submission, models.ApprovalResult) error {
	n.resolved++
	return n.err
}

type fakeBoard struct {
	scores map[string]int
	err    error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{scores: make(map[string]int)}
}

func (b *fakeBoard) SetScore(_ context.Context, memberID string, points int) error {
	if b.err != nil {
		return b.err
	}
	b.scores[memberID] = points
	return nil
}
