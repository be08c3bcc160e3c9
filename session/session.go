// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/nightfall/network"
)

// Session is one client connection. It is bound to a participant identity
// once the client says hello, and to a game room once it creates or joins one.
type Session struct {
	ID            string
	Conn          network.Connection
	participantID string
	roomID        string
	Data          map[string]interface{} // 自定义数据
	CreatedAt     time.Time
	lastActive    time.Time
	mutex         sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		Data:       make(map[string]interface{}),
	}
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Data[key]
}

// Bind sets the participant identity of the connection.
func (s *Session) Bind(participantID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.participantID = participantID
}

func (s *Session) ParticipantID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.participantID
}

// EnterRoom subscribes the connection to a game room's updates.
func (s *Session) EnterRoom(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
}

func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetByParticipant returns every connection bound to participantID.
func (m *Manager) GetByParticipant(participantID string) []*Session {
	return m.filter(func(s *Session) bool { return s.ParticipantID() == participantID })
}

// InRoom returns every connection subscribed to roomID.
func (m *Manager) InRoom(roomID string) []*Session {
	return m.filter(func(s *Session) bool { return s.RoomID() == roomID })
}

func (m *Manager) filter(keep func(*Session) bool) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if keep(session) {
			result = append(result, session)
		}
	}
	return result
}
