package room

import (
	"errors"
	"sync"
)

var ErrCodeTaken = errors.New("room code already taken")

// MemoryStore keeps rooms in process memory, indexed by id and room code.
type MemoryStore struct {
	byID   map[string]*Room
	byCode map[string]*Room
	mutex  sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Room),
		byCode: make(map[string]*Room),
	}
}

func (s *MemoryStore) Get(id string) (*Room, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	room, exists := s.byID[id]
	return room, exists
}

func (s *MemoryStore) GetByCode(code string) (*Room, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	room, exists := s.byCode[code]
	return room, exists
}

func (s *MemoryStore) Put(room *Room) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if other, exists := s.byCode[room.Code()]; exists && other != room {
		return ErrCodeTaken
	}
	s.byID[room.GetID()] = room
	s.byCode[room.Code()] = room
	return nil
}

func (s *MemoryStore) Delete(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if room, exists := s.byID[id]; exists {
		delete(s.byCode, room.Code())
		delete(s.byID, id)
	}
}

func (s *MemoryStore) CodeExists(code string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.byCode[code]
	return exists
}

func (s *MemoryStore) List() []*Room {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rooms := make([]*Room, 0, len(s.byID))
	for _, room := range s.byID {
		rooms = append(rooms, room)
	}
	return rooms
}
