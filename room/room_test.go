package room

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/timer"
)

// joinOrder deals killer, protector and investigator to the first three
// participants to join.
type joinOrder struct{ game.Rand }

func (joinOrder) Shuffle(int, func(i, j int)) {}

func joinOrderSource() game.Rand { return joinOrder{game.NewSeededRand(1)} }

// MockBroadcaster counts state change notifications.
type MockBroadcaster struct {
	calls atomic.Int64
	err   error
}

func (m *MockBroadcaster) EmitStateChanged(ctx context.Context, sessionID string) error {
	m.calls.Add(1)
	return m.err
}

// MockSettler records every payout request.
type MockSettler struct {
	mutex   sync.Mutex
	calls   int
	winners []string
	losers  []string
	err     error
}

func (m *MockSettler) DistributeRewards(ctx context.Context, sessionID string, winners, losers []string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls++
	m.winners, m.losers = winners, losers
	return m.err
}

func (m *MockSettler) Calls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.calls
}

func fastConfig() config.GameConfig {
	cfg := config.DefaultGameConfig()
	cfg.MinParticipants = 4
	cfg.MaxParticipants = 6
	cfg.TickInterval = time.Millisecond
	cfg.Retention = 0
	cfg.Durations = config.PhaseDurations{
		ReadyTimeout: 5000,
		ReadyGrace:   5000,
		Night:        5000,
		Resolution:   5,
		Task:         5000,
		Voting:       300,
	}
	return cfg
}

// newBareRoom returns a room with no tick timer; tests drive expiry by hand.
func newBareRoom(t *testing.T, cfg config.GameConfig) *Room {
	t.Helper()
	sess := models.NewSession("s1", "ABCDEF", "P1", "0", cfg.MinParticipants, cfg.MaxParticipants, time.Now())
	r := NewRoom(sess, Options{Config: cfg, Rand: joinOrderSource()})
	t.Cleanup(r.Close)
	return r
}

func phaseOf(t *testing.T, r *Room) models.Phase {
	t.Helper()
	snap, err := r.PublicState(context.Background())
	require.NoError(t, err)
	return snap.Phase
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager := NewRoomManager(fastConfig())
	defer manager.Close()
	ctx := context.Background()

	res, err := manager.CreateSession(ctx, "creator", "50", 0)
	require.NoError(t, err)
	assert.Len(t, res.RoomCode, CodeLength)
	for _, c := range res.RoomCode {
		assert.True(t, strings.ContainsRune(CodeAlphabet, c), "unexpected code character %q", c)
	}

	room, exists := manager.GetRoom(res.SessionID)
	require.True(t, exists)

	byCode, err := manager.Lookup(strings.ToLower(res.RoomCode))
	require.NoError(t, err)
	assert.Same(t, room, byCode)

	snap, err := room.PublicState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"creator"}, snap.Participants)
	assert.Equal(t, models.PhaseLobby, snap.Phase)
	assert.Equal(t, 4, snap.MinParticipants)
	assert.Equal(t, 6, snap.MaxParticipants)
	assert.Equal(t, "50", snap.Stake)
}

func TestRoomManager_CreateValidation(t *testing.T) {
	manager := NewRoomManager(fastConfig())
	defer manager.Close()
	ctx := context.Background()

	_, err := manager.CreateSession(ctx, " ", "0", 4)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = manager.CreateSession(ctx, "c", "0", 2)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = manager.CreateSession(ctx, "c", "0", 7)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Empty(t, manager.Rooms())
}

func TestRoomManager_RegeneratesCodeOnCollision(t *testing.T) {
	entropy := bytes.NewReader(append(append(make([]byte, 6), make([]byte, 6)...), bytes.Repeat([]byte{1}, 6)...))
	manager := NewRoomManager(fastConfig(), WithEntropy(entropy))
	defer manager.Close()
	ctx := context.Background()

	first, err := manager.CreateSession(ctx, "a", "0", 0)
	require.NoError(t, err)
	second, err := manager.CreateSession(ctx, "b", "0", 0)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.RoomCode)
	assert.Equal(t, "BBBBBB", second.RoomCode)
}

func TestRoomManager_JoinErrors(t *testing.T) {
	manager := NewRoomManager(fastConfig())
	defer manager.Close()
	ctx := context.Background()

	_, err := manager.Join(ctx, "nope", "P1")
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)

	res, err := manager.CreateSession(ctx, "P1", "0", 0)
	require.NoError(t, err)
	_, err = manager.Join(ctx, res.SessionID, "P1")
	assert.ErrorIs(t, err, apperr.ErrAlreadyJoined)

	for _, id := range []string{"P2", "P3", "P4", "P5", "P6"} {
		_, err := manager.Join(ctx, res.RoomCode, id)
		require.NoError(t, err)
	}
	_, err = manager.Join(ctx, res.RoomCode, "P7")
	assert.ErrorIs(t, err, apperr.ErrSessionFull)
}

func TestRoom_PlaysToCompletion(t *testing.T) {
	timers := timer.NewManager(time.Millisecond)
	defer timers.Stop()
	settler := &MockSettler{}
	broadcaster := &MockBroadcaster{}
	manager := NewRoomManager(fastConfig(),
		WithTimers(timers),
		WithSettler(settler),
		WithBroadcaster(broadcaster),
		WithRandSource(joinOrderSource),
	)
	defer manager.Close()
	ctx := context.Background()

	res, err := manager.CreateSession(ctx, "P1", "100", 0)
	require.NoError(t, err)
	for _, id := range []string{"P2", "P3", "P4"} {
		_, err := manager.Join(ctx, res.RoomCode, id)
		require.NoError(t, err)
	}
	room, _ := manager.GetRoom(res.SessionID)

	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		require.NoError(t, room.SignalReady(ctx, id))
	}
	require.Equal(t, models.PhaseNight, phaseOf(t, room))

	require.NoError(t, room.SubmitNightAction(ctx, "P1", models.NightAction{Type: models.ActionKill, Target: "P4"}))
	require.NoError(t, room.SubmitNightAction(ctx, "P2", models.NightAction{Type: models.ActionProtect, Target: "P2"}))
	require.NoError(t, room.SubmitNightAction(ctx, "P3", models.NightAction{Type: models.ActionInvestigate, Target: "P1"}))
	require.NoError(t, room.SubmitNightAction(ctx, "P4", models.NightAction{Type: models.ActionSkip}))

	view, err := room.StateFor(ctx, "P3")
	require.NoError(t, err)
	require.NotNil(t, view.You)
	assert.Equal(t, models.RoleInvestigator, view.You.Role)
	assert.Equal(t, []models.Investigation{{Day: 1, Target: "P1", Role: models.RoleKiller}}, view.You.Investigations)
	assert.Equal(t, []string{"P4"}, view.Eliminated)

	require.Eventually(t, func() bool { return phaseOf(t, room) == models.PhaseTask }, 2*time.Second, 2*time.Millisecond)

	var answer []string
	require.NoError(t, room.do(ctx, func() { answer = slices.Clone(room.session.Task.Answer) }))
	assert.ErrorIs(t, room.SubmitTaskAnswer(ctx, "P4", answer), apperr.ErrEliminated)
	for _, id := range []string{"P1", "P2", "P3"} {
		require.NoError(t, room.SubmitTaskAnswer(ctx, id, answer))
	}
	require.Equal(t, models.PhaseVoting, phaseOf(t, room))

	require.NoError(t, room.SubmitVote(ctx, "P2", "P1"))
	require.NoError(t, room.SubmitVote(ctx, "P3", "P1"))
	require.NoError(t, room.SubmitVote(ctx, "P1", "P2"))

	require.Eventually(t, func() bool { return phaseOf(t, room) == models.PhaseEnded }, 3*time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return settler.Calls() == 1 }, time.Second, 2*time.Millisecond)

	final, err := room.PublicState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FactionBystander, final.WinningFaction)
	assert.Equal(t, []string{"P2", "P3"}, final.Winners)
	assert.Equal(t, map[string]int{"P1": 1, "P2": 1, "P3": 1}, final.TaskScores)
	require.NotNil(t, final.Reveal)
	assert.True(t, game.VerifyCommitment(final.Reveal.Roles, final.Reveal.Salt, final.Commitment))

	settler.mutex.Lock()
	assert.Equal(t, []string{"P2", "P3"}, settler.winners)
	assert.Equal(t, []string{"P1", "P4"}, settler.losers)
	settler.mutex.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, settler.Calls())
	assert.Positive(t, broadcaster.calls.Load())
	_, completed := room.CompletedAt()
	assert.True(t, completed)
}

func TestRoom_StaleExpiryIsIgnored(t *testing.T) {
	cfg := fastConfig()
	cfg.ReadyGated = false
	r := newBareRoom(t, cfg)
	ctx := context.Background()
	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		_, err := r.Join(ctx, id)
		require.NoError(t, err)
	}
	require.Equal(t, models.PhaseNight, phaseOf(t, r))

	var epoch uint64
	require.NoError(t, r.do(ctx, func() { epoch = r.countdown.Epoch() }))

	fire := func(e timer.Expiry) {
		require.NoError(t, r.do(ctx, func() { r.handleExpiry(e) }))
	}
	fire(timer.Expiry{Epoch: epoch - 1, Tag: string(models.PhaseNight)})
	assert.Equal(t, models.PhaseNight, phaseOf(t, r), "expiry from a cancelled cycle")
	fire(timer.Expiry{Epoch: epoch, Tag: string(models.PhaseVoting)})
	assert.Equal(t, models.PhaseNight, phaseOf(t, r), "expiry tagged for another phase")

	live := timer.Expiry{Epoch: epoch, Tag: string(models.PhaseNight)}
	fire(live)
	assert.Equal(t, models.PhaseResolution, phaseOf(t, r))
	fire(live)
	assert.Equal(t, models.PhaseResolution, phaseOf(t, r), "a delivered expiry cannot fire twice")
}

func TestRoom_ConcurrentSubmissionsResolveOnce(t *testing.T) {
	cfg := fastConfig()
	cfg.ReadyGated = false
	r := newBareRoom(t, cfg)
	ctx := context.Background()
	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		_, err := r.Join(ctx, id)
		require.NoError(t, err)
	}

	actions := map[string]models.NightAction{
		"P1": {Type: models.ActionKill, Target: "P4"},
		"P2": {Type: models.ActionProtect, Target: "P4"},
		"P3": {Type: models.ActionInvestigate, Target: "P2"},
		"P4": {Type: models.ActionSkip},
	}

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for id, action := range actions {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := r.SubmitNightAction(ctx, id, action)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, apperr.ErrDuplicateSubmission), errors.Is(err, apperr.ErrWrongPhase):
				default:
					t.Errorf("unexpected error for %s: %v", id, err)
				}
			}()
		}
	}
	wg.Wait()

	assert.EqualValues(t, 4, accepted.Load())
	snap, err := r.PublicState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResolution, snap.Phase)
	assert.Equal(t, 1, snap.Day)
	assert.Empty(t, snap.Eliminated)
}

func TestRoom_StateForOutsider(t *testing.T) {
	r := newBareRoom(t, fastConfig())
	_, err := r.Join(context.Background(), "P1")
	require.NoError(t, err)

	_, err = r.StateFor(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrParticipantNotFound)

	snap, err := r.StateFor(context.Background(), "P1")
	require.NoError(t, err)
	require.NotNil(t, snap.You)
	assert.Empty(t, snap.You.Role)
}

func TestRoom_ClosedRoomRejectsCalls(t *testing.T) {
	r := newBareRoom(t, fastConfig())
	r.Close()

	_, err := r.Join(context.Background(), "P1")
	assert.ErrorIs(t, err, apperr.ErrSessionClosed)
	_, err = r.PublicState(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSessionClosed)
}

func TestRoom_ExpiredRequestIsNotApplied(t *testing.T) {
	r := newBareRoom(t, fastConfig())

	release := make(chan struct{})
	r.post(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	joined := make(chan error, 1)
	go func() {
		_, err := r.Join(ctx, "P9")
		joined <- err
	}()

	<-ctx.Done()
	close(release)

	select {
	case err := <-joined:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("join did not return after the loop was released")
	}

	participants, err := r.Participants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, participants)

	// a retry with a live context succeeds instead of reporting a duplicate
	_, err = r.Join(context.Background(), "P9")
	require.NoError(t, err)
}

func TestRoomManager_Reap(t *testing.T) {
	cfg := fastConfig()
	cfg.Retention = time.Minute
	manager := NewRoomManager(cfg)
	defer manager.Close()

	res, err := manager.CreateSession(context.Background(), "P1", "0", 0)
	require.NoError(t, err)
	room, _ := manager.GetRoom(res.SessionID)

	t0 := time.Unix(1_000, 0)
	assert.Zero(t, manager.Reap(t0.Add(time.Hour)), "unfinished sessions are kept")

	room.completedAt.Store(t0.UnixNano())
	assert.Zero(t, manager.Reap(t0.Add(30*time.Second)))
	assert.Equal(t, 1, manager.Reap(t0.Add(2*time.Minute)))

	_, exists := manager.GetRoom(res.SessionID)
	assert.False(t, exists)
	_, err = manager.Lookup(res.RoomCode)
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
	_, err = room.PublicState(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSessionClosed)
}
