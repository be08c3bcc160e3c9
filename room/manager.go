package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/game"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/monitor"
	"github.com/wfunc/nightfall/timer"
)

const (
	// CodeAlphabet leaves out 0/O and 1/I so codes can be read aloud.
	CodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength      = 6
	maxCodeAttempts = 32
	maxReapInterval = time.Minute
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithStore(store Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithTimers shares an existing scheduler. The manager will not stop it.
func WithTimers(timers *timer.Manager) ManagerOption {
	return func(m *Manager) { m.timers = timers }
}

func WithBroadcaster(b Broadcaster) ManagerOption {
	return func(m *Manager) { m.broadcaster = b }
}

func WithSettler(s Settler) ManagerOption {
	return func(m *Manager) { m.settler = s }
}

func WithMetrics(metrics *monitor.Monitor) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithRandSource supplies each new room's generator.
func WithRandSource(source func() game.Rand) ManagerOption {
	return func(m *Manager) { m.randSource = source }
}

// WithEntropy sets the reader used for room codes and commitment salts.
func WithEntropy(r io.Reader) ManagerOption {
	return func(m *Manager) { m.entropy = r }
}

// Manager 管理所有房间
type Manager struct {
	store       Store
	cfg         config.GameConfig
	timers      *timer.Manager
	ownsTimers  bool
	broadcaster Broadcaster
	settler     Settler
	metrics     *monitor.Monitor
	clock       func() time.Time
	randSource  func() game.Rand
	entropy     io.Reader
	reapID      int64
	mutex       sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(cfg config.GameConfig, opts ...ManagerOption) *Manager {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.timers == nil {
		m.timers = timer.NewManager(timer.DefaultResolution)
		m.ownsTimers = true
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.entropy == nil {
		m.entropy = rand.Reader
	}
	if cfg.Retention > 0 {
		interval := min(cfg.Retention, maxReapInterval)
		m.reapID = m.timers.AddTimer(interval, interval, func() {
			m.Reap(m.clock())
		})
	}
	return m
}

// SetBroadcaster installs the broadcaster for rooms created from now on.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.broadcaster = b
}

// SetSettler installs the settler for rooms created from now on.
func (m *Manager) SetSettler(s Settler) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.settler = s
}

// CreateSession allocates a session with a unique id and room code and
// joins the creator as its first participant. minParticipants of zero uses
// the configured default.
func (m *Manager) CreateSession(ctx context.Context, creatorID, stake string, minParticipants int) (models.CreateResult, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return models.CreateResult{}, apperr.ErrInvalidInput.WithDetail("creator id is required")
	}
	if minParticipants == 0 {
		minParticipants = m.cfg.MinParticipants
	}
	maxParticipants := m.cfg.MaxParticipants
	if minParticipants < game.MinRoleParticipants || minParticipants > maxParticipants {
		return models.CreateResult{}, apperr.ErrInvalidInput.WithDetail(
			"min participants must be between %d and %d", game.MinRoleParticipants, maxParticipants)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	code, err := m.allocateCode()
	if err != nil {
		return models.CreateResult{}, err
	}

	sess := models.NewSession(uuid.NewString(), code, creatorID, stake, minParticipants, maxParticipants, m.clock())
	room := NewRoom(sess, m.roomOptions())
	if err := m.store.Put(room); err != nil {
		room.Close()
		return models.CreateResult{}, fmt.Errorf("store room: %w", err)
	}
	if _, err := room.Join(ctx, creatorID); err != nil {
		m.store.Delete(sess.ID)
		room.Close()
		return models.CreateResult{}, err
	}

	m.metrics.SetActiveSessions(len(m.store.List()))
	logger.Log.Infof("创建会话 %s, 房间码 %s, 创建者 %s", sess.ID, code, creatorID)
	return models.CreateResult{SessionID: sess.ID, RoomCode: code}, nil
}

// Join adds participantID to the session named by id or room code.
func (m *Manager) Join(ctx context.Context, idOrCode, participantID string) (models.Snapshot, error) {
	room, err := m.Lookup(idOrCode)
	if err != nil {
		return models.Snapshot{}, err
	}
	return room.Join(ctx, participantID)
}

// Lookup resolves a session id or a case-insensitive room code.
func (m *Manager) Lookup(idOrCode string) (*Room, error) {
	key := strings.TrimSpace(idOrCode)
	if room, exists := m.store.Get(key); exists {
		return room, nil
	}
	if room, exists := m.store.GetByCode(strings.ToUpper(key)); exists {
		return room, nil
	}
	return nil, apperr.ErrSessionNotFound.WithDetail("%q", idOrCode)
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	return m.store.Get(id)
}

// Rooms returns every registered room.
func (m *Manager) Rooms() []*Room {
	return m.store.List()
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	room, exists := m.store.Get(id)
	if !exists {
		return
	}
	m.store.Delete(id)
	room.Close()
	m.metrics.SetActiveSessions(len(m.store.List()))
}

// Reap removes sessions that completed at least the retention period before
// now and returns how many were removed.
func (m *Manager) Reap(now time.Time) int {
	reaped := 0
	for _, room := range m.store.List() {
		completed, ok := room.CompletedAt()
		if !ok || now.Sub(completed) < m.cfg.Retention {
			continue
		}
		m.RemoveRoom(room.GetID())
		reaped++
	}
	if reaped > 0 {
		logger.Log.Infof("回收 %d 个已结束的会话", reaped)
	}
	return reaped
}

// Close closes every room and stops the scheduler when the manager owns it.
func (m *Manager) Close() {
	if m.reapID != 0 {
		m.timers.RemoveTimer(m.reapID)
	}
	for _, room := range m.store.List() {
		m.store.Delete(room.GetID())
		room.Close()
	}
	if m.ownsTimers {
		m.timers.Stop()
	}
	m.metrics.SetActiveSessions(0)
}

// roomOptions must be called with mutex held.
func (m *Manager) roomOptions() Options {
	opts := Options{
		Config:      m.cfg,
		Entropy:     m.entropy,
		Clock:       m.clock,
		Timers:      m.timers,
		Broadcaster: m.broadcaster,
		Settler:     m.settler,
		Metrics:     m.metrics,
	}
	if m.randSource != nil {
		opts.Rand = m.randSource()
	}
	return opts
}

// allocateCode must be called with mutex held.
func (m *Manager) allocateCode() (string, error) {
	for range maxCodeAttempts {
		code, err := generateCode(m.entropy)
		if err != nil {
			return "", err
		}
		if !m.store.CodeExists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("allocate room code after %d attempts: %w", maxCodeAttempts, ErrCodeTaken)
}

// generateCode draws CodeLength characters from CodeAlphabet. The alphabet
// has 32 symbols, so taking a byte modulo its length is unbiased.
func generateCode(entropy io.Reader) (string, error) {
	raw := make([]byte, CodeLength)
	if _, err := io.ReadFull(entropy, raw); err != nil {
		return "", fmt.Errorf("read room code: %w", err)
	}
	code := make([]byte, CodeLength)
	for i, b := range raw {
		code[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(code), nil
}
