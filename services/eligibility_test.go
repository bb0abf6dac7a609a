package services

import (
	"testing"

	"clan-progression-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEligibility_ExactThresholdQualifies verifies the boundary: meeting the
// requirement exactly is enough, one point short is not.
func TestEligibility_ExactThresholdQualifies(t *testing.T) {
	e := NewEligibility(testLadder())

	member := &models.Member{ExternalID: "m1", RankOrder: 1, Points: 30}
	next, ok := e.Eligible(member)
	require.True(t, ok)
	assert.Equal(t, "Corporal", next.Name)

	member.Points = 29
	_, ok = e.Eligible(member)
	assert.False(t, ok)
}

// TestEligibility_NextIgnoresAdminRanks verifies appointment-only steps never
// come back as the next target.
func TestEligibility_NextIgnoresAdminRanks(t *testing.T) {
	e := NewEligibility(testLadder())

	next, ok := e.Next(&models.Member{RankOrder: 3})
	require.True(t, ok)
	assert.Equal(t, "Staff Sergeant", next.Name)

	_, ok = e.Next(&models.Member{RankOrder: 4})
	assert.False(t, ok)
}

// TestEligibility_Progress verifies the profile numbers on the way up and at
// the point ceiling.
func TestEligibility_Progress(t *testing.T) {
	e := NewEligibility(testLadder())

	have, need, next, done := e.Progress(&models.Member{RankOrder: 1, Points: 25})
	assert.False(t, done)
	assert.Equal(t, 25, have)
	assert.Equal(t, 30, need)
	assert.Equal(t, "Corporal", next.Name)

	_, _, _, done = e.Progress(&models.Member{RankOrder: 4, Points: 999})
	assert.True(t, done)
}
