package room

import "context"

// Broadcaster is told after every state-visible mutation of a session.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	EmitStateChanged(ctx context.Context, sessionID string) error
}

// Settler pays out a finished session. It is called once per session.
type Settler interface {
	DistributeRewards(ctx context.Context, sessionID string, winners, losers []string) error
}

// Store is the registry's backing repository.
type Store interface {
	Get(id string) (*Room, bool)
	GetByCode(code string) (*Room, bool)
	// Put fails with ErrCodeTaken when another room holds the same code.
	Put(room *Room) error
	Delete(id string)
	CodeExists(code string) bool
	List() []*Room
}
