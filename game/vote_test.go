package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/nightfall/models"
)

func TestTally(t *testing.T) {
	cases := []struct {
		name       string
		votes      map[string]string
		eliminated string
		tie        bool
	}{
		{
			name:  "two-two tie eliminates nobody",
			votes: map[string]string{"P1": "A", "P2": "A", "P3": "B", "P4": "B"},
			tie:   true,
		},
		{
			name:       "three-one plurality eliminates A",
			votes:      map[string]string{"P1": "A", "P2": "A", "P3": "A", "P4": "B"},
			eliminated: "A",
		},
		{
			name:  "no votes eliminates nobody",
			votes: map[string]string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStartedSession("P1", "P2", "P3", "P4", "A", "B")
			s.Phase = models.PhaseVoting
			s.Votes = tc.votes

			out := Tally(s)
			assert.Equal(t, tc.eliminated, out.Eliminated)
			assert.Equal(t, tc.tie, out.Tie)
		})
	}
}

func TestTallyIgnoresEliminatedVoters(t *testing.T) {
	s := newStartedSession("P1", "P2", "P3", "P4", "P5")
	s.Eliminate("P4")
	s.Votes = map[string]string{"P1": "P2", "P4": "P3", "P5": "P3", "P2": "P5"}

	out := Tally(s)
	assert.Equal(t, map[string]int{"P2": 1, "P3": 1, "P5": 1}, out.Counts)
	assert.True(t, out.Tie)
	assert.Empty(t, out.Eliminated)
}

func TestCheckWinProgression(t *testing.T) {
	s := newStartedSession("P1", "P2", "P3", "P4")

	s.Eliminate("P4")
	_, won := CheckWin(s)
	assert.False(t, won, "killer + 2 others continues")

	s.Eliminate("P3")
	faction, won := CheckWin(s)
	assert.True(t, won, "killer + 1 other is a killer win")
	assert.Equal(t, models.FactionKiller, faction)
	assert.Equal(t, []string{"P1"}, Winners(s, faction))
}

func TestCheckWinBystandersWhenKillerEliminated(t *testing.T) {
	s := newStartedSession("P1", "P2", "P3", "P4")
	s.Eliminate("P1")

	faction, won := CheckWin(s)
	assert.True(t, won)
	assert.Equal(t, models.FactionBystander, faction)
	assert.Equal(t, []string{"P2", "P3", "P4"}, Winners(s, faction))
}
