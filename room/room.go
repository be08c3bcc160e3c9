// room/room.go
package room

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/monitor"
	"github.com/wfunc/nightfall/state"
	"github.com/wfunc/nightfall/timer"
)

const (
	inboxSize           = 64
	collaboratorTimeout = 5 * time.Second
)

// Options carries a room's collaborators. Zero values get working defaults
// except Timers; a room without Timers never ticks on its own.
type Options struct {
	Config      config.GameConfig
	Rand        game.Rand
	Entropy     io.Reader
	Clock       func() time.Time
	Timers      *timer.Manager
	Broadcaster Broadcaster
	Settler     Settler
	Metrics     *monitor.Monitor
}

// Room 是一局游戏的执行者。所有会话状态只在 loop goroutine 中读写,
// 玩家提交和计时器到期都作为消息投递到 inbox 顺序处理。
type Room struct {
	id          string
	session     *models.Session
	machine     *state.BaseStateMachine
	countdown   *timer.Countdown
	cfg         config.GameConfig
	rng         game.Rand
	entropy     io.Reader
	clock       func() time.Time
	timers      *timer.Manager
	tickID      int64
	broadcaster Broadcaster
	settler     Settler
	metrics     *monitor.Monitor

	inbox     chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	settled     bool
	completedAt atomic.Int64
}

// NewRoom wraps sess in a running room. sess must be in the lobby phase.
func NewRoom(sess *models.Session, opts Options) *Room {
	r := &Room{
		id:          sess.ID,
		session:     sess,
		countdown:   timer.NewCountdown(),
		cfg:         opts.Config,
		rng:         opts.Rand,
		entropy:     opts.Entropy,
		clock:       opts.Clock,
		timers:      opts.Timers,
		broadcaster: opts.Broadcaster,
		settler:     opts.Settler,
		metrics:     opts.Metrics,
		inbox:       make(chan func(), inboxSize),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	if r.entropy == nil {
		r.entropy = rand.Reader
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.rng == nil {
		rng, err := game.NewRand()
		if err != nil {
			logger.Log.Warnf("会话 %s 随机源初始化失败, 使用时间种子: %v", r.id, err)
			r.rng = game.NewSeededRand(uint64(time.Now().UnixNano()))
		} else {
			r.rng = rng
		}
	}

	// 初始化状态机，将房间自身(room)作为上下文传入
	r.machine = state.NewPhaseMachine(r)

	go r.loop()

	if r.timers != nil && r.cfg.TickInterval > 0 {
		r.tickID = r.timers.AddTimer(r.cfg.TickInterval, r.cfg.TickInterval, func() {
			r.post(r.tick)
		})
	}
	return r
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string { return r.id }
func (r *Room) Session() *models.Session { return r.session }
func (r *Room) Countdown() *timer.Countdown { return r.countdown }
func (r *Room) Config() config.GameConfig { return r.cfg }
func (r *Room) Rand() game.Rand { return r.rng }
func (r *Room) Entropy() io.Reader { return r.entropy }
func (r *Room) Now() time.Time { return r.clock() }
func (r *Room) Metrics() *monitor.Monitor { return r.metrics }

// ChangeState 改变房间的状态机状态
func (r *Room) ChangeState(newState state.State) error {
	from := r.machine.GetCurrentState().GetID()
	if err := r.machine.ChangeState(newState); err != nil {
		return err
	}
	logger.Log.Infof("会话 %s 阶段 %s -> %s (第 %d 天)", r.id, from, newState.GetID(), r.session.Day)
	return nil
}

// NotifyStateChanged tells the broadcaster without waiting for it.
func (r *Room) NotifyStateChanged() {
	if r.broadcaster == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := r.broadcaster.EmitStateChanged(ctx, r.id); err != nil {
			r.metrics.ObserveCollaboratorFailure("broadcast")
			logger.Log.Warnf("会话 %s 广播失败: %v", r.id, apperr.ErrCollaborator.Wrap(err))
		}
	}()
}

// Settle hands the result to the settler once. A settlement failure is
// logged; the result stands.
func (r *Room) Settle(winners, losers []string) {
	if r.settled {
		return
	}
	r.settled = true
	r.completedAt.Store(r.clock().UnixNano())

	if r.settler == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := r.settler.DistributeRewards(ctx, r.id, winners, losers); err != nil {
			r.metrics.ObserveCollaboratorFailure("settlement")
			logger.Log.Errorf("会话 %s 结算失败: %v", r.id, apperr.ErrCollaborator.Wrap(err))
		}
	}()
}

// --- 对外操作, 全部经由 inbox 串行执行 ---

func (r *Room) Join(ctx context.Context, participantID string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := r.apply(ctx, state.Join{ParticipantID: participantID}, func() {
		snap = r.session.SnapshotFor(participantID)
	})
	return snap, err
}

func (r *Room) SignalReady(ctx context.Context, participantID string) error {
	return r.apply(ctx, state.Ready{ParticipantID: participantID}, nil)
}

func (r *Room) SubmitNightAction(ctx context.Context, participantID string, action models.NightAction) error {
	return r.apply(ctx, state.SubmitNightAction{ParticipantID: participantID, Action: action}, nil)
}

func (r *Room) SubmitTaskAnswer(ctx context.Context, participantID string, answer []string) error {
	return r.apply(ctx, state.SubmitTaskAnswer{ParticipantID: participantID, Answer: answer}, nil)
}

func (r *Room) SubmitVote(ctx context.Context, participantID, target string) error {
	return r.apply(ctx, state.SubmitVote{ParticipantID: participantID, Target: target}, nil)
}

// PublicState returns the redacted view shared by every observer.
func (r *Room) PublicState(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := r.do(ctx, func() {
		snap = r.session.PublicSnapshot()
	})
	return snap, err
}

// StateFor returns the public view plus participantID's private view.
func (r *Room) StateFor(ctx context.Context, participantID string) (models.Snapshot, error) {
	var (
		snap models.Snapshot
		err  error
	)
	if derr := r.do(ctx, func() {
		if !r.session.HasParticipant(participantID) {
			err = apperr.ErrParticipantNotFound.WithDetail("participant %q", participantID)
			return
		}
		snap = r.session.SnapshotFor(participantID)
	}); derr != nil {
		return models.Snapshot{}, derr
	}
	return snap, err
}

// Participants returns the join-ordered participant list.
func (r *Room) Participants(ctx context.Context) ([]string, error) {
	var out []string
	err := r.do(ctx, func() {
		out = append(out, r.session.Participants...)
	})
	return out, err
}

func (r *Room) Code() string { return r.session.Code }

// CompletedAt reports when the session ended.
func (r *Room) CompletedAt() (time.Time, bool) {
	ns := r.completedAt.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Close stops the tick timer and the event loop. It must not be called from
// inside the loop.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		if r.timers != nil && r.tickID != 0 {
			r.timers.RemoveTimer(r.tickID)
		}
		r.countdown.Cancel()
		close(r.quit)
		<-r.stopped
	})
}

// --- 房间核心逻辑 ---

// apply routes action to the current state and, on success, runs after in
// the same turn of the loop.
func (r *Room) apply(ctx context.Context, action state.Action, after func()) error {
	start := time.Now()
	var err error
	if derr := r.do(ctx, func() {
		r.metrics.IncMessagesReceived()
		err = r.machine.GetCurrentState().HandleAction(action)
		if err == nil && after != nil {
			after()
		}
	}); derr != nil {
		return derr
	}
	r.metrics.ObserveMessageLatency(time.Since(start))
	return err
}

// do runs fn on the loop and waits for it. A request whose ctx has expired
// by the time the loop reaches it is dropped without running fn, so an error
// result always means fn had no effect.
func (r *Room) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	var expired error
	req := func() {
		defer close(done)
		if expired = ctx.Err(); expired != nil {
			return
		}
		fn()
	}
	select {
	case r.inbox <- req:
	case <-r.quit:
		return apperr.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// the loop never blocks, so this wait is bounded
	select {
	case <-done:
		return expired
	case <-r.stopped:
		return apperr.ErrSessionClosed
	}
}

// post queues fn without waiting for it to run.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.quit:
	}
}

// loop 是房间的主循环，逐条处理 inbox 中的消息
func (r *Room) loop() {
	defer close(r.stopped)
	for {
		select {
		case fn := <-r.inbox:
			fn()
		case <-r.quit:
			return
		}
	}
}

// tick advances the countdown by one unit.
func (r *Room) tick() {
	expiry, fired := r.countdown.Tick()
	r.session.TimeLeft = r.countdown.Remaining()
	if fired {
		r.handleExpiry(expiry)
	}
}

// handleExpiry fires the current state's OnExpire unless expiry belongs to a
// cycle that has since been cancelled or replaced.
func (r *Room) handleExpiry(expiry timer.Expiry) {
	current := r.machine.GetCurrentState()
	if !r.countdown.Current(expiry) || expiry.Tag != string(current.GetID()) {
		r.metrics.IncStaleExpiries()
		logger.Log.Debugf("会话 %s 忽略过期的计时器 %+v (当前阶段 %s)", r.id, expiry, current.GetID())
		return
	}
	current.OnExpire()
}
