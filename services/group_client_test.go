package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clan-progression-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGroupClient_FetchRank walks the platform's answer shapes: a rank, an
// unknown account, a throttle, and a server fault.
func TestGroupClient_FetchRank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/groups/g1/members/alice/rank":
			json.NewEncoder(w).Encode(models.GroupRank{ID: 9, Level: 3, Name: "Sergeant"})
		case "/v1/groups/g1/members/bob/rank":
			w.WriteHeader(http.StatusNotFound)
		case "/v1/groups/g1/members/carol/rank":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewGroupClient(srv.URL, "g1", "tok", testLogger())

	desc, err := c.FetchRank(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(9), desc.ID)
	assert.Equal(t, 3, desc.Level)
	assert.Equal(t, "Sergeant", desc.Name)

	_, err = c.FetchRank(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNotInGroup)

	_, err = c.FetchRank(context.Background(), "carol")
	var throttled *RateLimitedError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 7*time.Second, throttled.RetryAfter)

	_, err = c.FetchRank(context.Background(), "dave")
	var external *ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, "group platform", external.Service)
}

// TestGroupClient_PushRank verifies the write: PATCH to the member's rank
// resource with the rank ref in the body.
func TestGroupClient_PushRank(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewGroupClient(srv.URL, "g1", "tok", testLogger())

	err := c.PushRank(context.Background(), "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/v1/groups/g1/members/alice/rank", gotPath)
	assert.Equal(t, map[string]int{"rank_ref": 4}, gotBody)
}

// TestGroupClient_PushRank_Errors verifies 404 and throttle mapping on the
// write path.
func TestGroupClient_PushRank_Errors(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewGroupClient(srv.URL, "g1", "tok", testLogger())

	err := c.PushRank(context.Background(), "alice", 4)
	assert.ErrorIs(t, err, ErrNotInGroup)

	status = http.StatusTooManyRequests
	err = c.PushRank(context.Background(), "alice", 4)
	assert.True(t, IsRateLimited(err))

	status = http.StatusForbidden
	err = c.PushRank(context.Background(), "alice", 4)
	var external *ExternalServiceError
	assert.ErrorAs(t, err, &external)
}

// TestGroupClient_ListRanks verifies the roster read unwraps the envelope.
func TestGroupClient_ListRanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/groups/g1/ranks", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ranks": []models.GroupRank{
				{ID: 1, Level: 1, Name: "Private"},
				{ID: 45, Level: 45, Name: "Commander"},
			},
		})
	}))
	defer srv.Close()

	c := NewGroupClient(srv.URL, "g1", "tok", testLogger())

	ranks, err := c.ListRanks(context.Background())
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	assert.Equal(t, "Commander", ranks[1].Name)
}

// TestGroupClient_VerifyCredentials verifies the startup probe accepts a live
// session and rejects a dead token.
func TestGroupClient_VerifyCredentials(t *testing.T) {
	ok := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/session", r.URL.Path)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"account": "progression-bot"})
	}))
	defer srv.Close()

	c := NewGroupClient(srv.URL, "g1", "tok", testLogger())

	require.NoError(t, c.VerifyCredentials(context.Background()))

	ok = false
	err := c.VerifyCredentials(context.Background())
	var external *ExternalServiceError
	assert.ErrorAs(t, err, &external)
}
