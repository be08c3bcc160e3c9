package game

import (
	"bytes"
	crand "crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/models"
)

func participants(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i+1)
	}
	return ids
}

func TestAssignRolesIsCompletePartition(t *testing.T) {
	for n := 3; n <= 10; n++ {
		for seed := uint64(0); seed < 25; seed++ {
			ids := participants(n)
			roles, err := AssignRoles(ids, NewSeededRand(seed))
			require.NoError(t, err)
			require.Len(t, roles, n)

			counts := map[models.Role]int{}
			for _, id := range ids {
				role, ok := roles[id]
				require.True(t, ok, "participant %s has no role", id)
				counts[role]++
			}
			assert.Equal(t, 1, counts[models.RoleKiller], "n=%d seed=%d", n, seed)
			assert.Equal(t, 1, counts[models.RoleProtector], "n=%d seed=%d", n, seed)
			assert.Equal(t, 1, counts[models.RoleInvestigator], "n=%d seed=%d", n, seed)
			assert.Equal(t, n-3, counts[models.RoleBystander], "n=%d seed=%d", n, seed)
		}
	}
}

func TestAssignRolesDoesNotMutateInput(t *testing.T) {
	ids := participants(6)
	_, err := AssignRoles(ids, NewSeededRand(7))
	require.NoError(t, err)
	assert.Equal(t, participants(6), ids)
}

func TestAssignRolesIsDeterministicForSeed(t *testing.T) {
	a, err := AssignRoles(participants(7), NewSeededRand(42))
	require.NoError(t, err)
	b, err := AssignRoles(participants(7), NewSeededRand(42))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAssignRolesSpreadsKiller(t *testing.T) {
	seen := map[string]bool{}
	for seed := uint64(0); seed < 200; seed++ {
		roles, err := AssignRoles(participants(5), NewSeededRand(seed))
		require.NoError(t, err)
		for id, role := range roles {
			if role == models.RoleKiller {
				seen[id] = true
			}
		}
	}
	assert.Len(t, seen, 5, "every participant should be killer for some seed")
}

func TestAssignRolesRejectsTooFewParticipants(t *testing.T) {
	_, err := AssignRoles(participants(2), NewSeededRand(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientParticipants)
	assert.Equal(t, apperr.KindCapacity, apperr.KindOf(err))
}

func TestCommitmentRoundTrip(t *testing.T) {
	roles, err := AssignRoles(participants(6), NewSeededRand(3))
	require.NoError(t, err)

	c, err := Commit(roles, crand.Reader)
	require.NoError(t, err)
	assert.Len(t, c.Hash, 64)
	assert.Len(t, c.Salt, 32)

	assert.True(t, VerifyCommitment(roles, c.Salt, c.Hash))

	recomputed, err := CommitmentHash(roles, c.Salt)
	require.NoError(t, err)
	assert.Equal(t, c.Hash, recomputed)
}

func TestCommitmentDetectsTampering(t *testing.T) {
	roles := map[string]models.Role{
		"P1": models.RoleKiller,
		"P2": models.RoleProtector,
		"P3": models.RoleInvestigator,
	}
	c, err := Commit(roles, bytes.NewReader(bytes.Repeat([]byte{1}, 16)))
	require.NoError(t, err)

	swapped := map[string]models.Role{
		"P1": models.RoleProtector,
		"P2": models.RoleKiller,
		"P3": models.RoleInvestigator,
	}
	assert.False(t, VerifyCommitment(swapped, c.Salt, c.Hash))
	assert.False(t, VerifyCommitment(roles, "00", c.Hash))
}

func TestCommitFailsWithoutEntropy(t *testing.T) {
	_, err := Commit(map[string]models.Role{"P1": models.RoleKiller}, bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestAllowedAction(t *testing.T) {
	assert.True(t, AllowedAction(models.RoleKiller, models.ActionKill))
	assert.True(t, AllowedAction(models.RoleProtector, models.ActionProtect))
	assert.True(t, AllowedAction(models.RoleInvestigator, models.ActionInvestigate))
	assert.True(t, AllowedAction(models.RoleBystander, models.ActionSkip))
	assert.False(t, AllowedAction(models.RoleBystander, models.ActionKill))
	assert.False(t, AllowedAction(models.RoleProtector, models.ActionKill))
	assert.False(t, AllowedAction(models.RoleKiller, models.ActionType("dance")))
}
