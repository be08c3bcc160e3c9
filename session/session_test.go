package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/nightfall/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error { return nil }
func (m *MockConnection) RemoteAddr() net.Addr { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}
	if _, exists = manager.Get(sessionID); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByParticipant(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.Bind("alice")
	sess2 := NewSession("session2", &MockConnection{})
	sess2.Bind("bob")
	sess3 := NewSession("session3", &MockConnection{})
	sess3.Bind("alice")

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := len(manager.GetByParticipant("alice")); got != 2 {
		t.Errorf("Expected 2 sessions for alice, got %d", got)
	}
	if got := len(manager.GetByParticipant("bob")); got != 1 {
		t.Errorf("Expected 1 session for bob, got %d", got)
	}
	if got := len(manager.GetByParticipant("carol")); got != 0 {
		t.Errorf("Expected 0 sessions for carol, got %d", got)
	}
}

func TestManager_InRoom(t *testing.T) {
	manager := NewManager()

	inRoom := NewSession("session1", &MockConnection{})
	inRoom.EnterRoom("room-a")
	elsewhere := NewSession("session2", &MockConnection{})
	elsewhere.EnterRoom("room-b")
	lobby := NewSession("session3", &MockConnection{})

	manager.Add(inRoom)
	manager.Add(elsewhere)
	manager.Add(lobby)

	got := manager.InRoom("room-a")
	if len(got) != 1 || got[0] != inRoom {
		t.Errorf("Expected only session1 in room-a, got %v", got)
	}
}

func TestSession_SendTouches(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", conn)
	before := sess.LastActive()
	time.Sleep(time.Millisecond)

	if err := sess.Send(network.MsgTypeAck, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !sess.LastActive().After(before) {
		t.Error("Send should refresh LastActive")
	}
	if len(conn.sent) != 1 || conn.sent[0] != network.MsgTypeAck {
		t.Errorf("Expected one ack to be sent, got %v", conn.sent)
	}
}

func TestSession_Set_Get(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})
	key := "test_key"
	value := "test_value"

	sess.Set(key, value)

	if retrievedValue := sess.Get(key); retrievedValue != value {
		t.Errorf("Expected value %v, got %v", value, retrievedValue)
	}
	if nilValue := sess.Get("non_existent_key"); nilValue != nil {
		t.Errorf("Expected nil for non-existent key, got %v", nilValue)
	}
}
