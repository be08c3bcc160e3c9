// broadcast/broadcast.go
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/models"
	"github.com/wfunc/nightfall/network"
	"github.com/wfunc/nightfall/room"
	"github.com/wfunc/nightfall/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// StateSource is the part of a room the broadcaster reads.
type StateSource interface {
	PublicState(ctx context.Context) (models.Snapshot, error)
	StateFor(ctx context.Context, participantID string) (models.Snapshot, error)
}

// RoomLookup finds rooms by session id.
type RoomLookup interface {
	GetRoom(id string) (*room.Room, bool)
}

// 基于房间的广播器: 每个连接只收到自己视角的快照
type RoomBroadcaster struct {
	lookup         func(id string) (StateSource, bool)
	sessionManager *session.Manager
}

func NewRoomBroadcaster(rooms RoomLookup, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		lookup: func(id string) (StateSource, bool) {
			r, ok := rooms.GetRoom(id)
			if !ok {
				return nil, false
			}
			return r, true
		},
		sessionManager: sessionManager,
	}
}

// EmitStateChanged pushes a fresh snapshot to every connection watching
// sessionID. Participants get their private view, spectators the public one.
func (b *RoomBroadcaster) EmitStateChanged(ctx context.Context, sessionID string) error {
	source, exists := b.lookup(sessionID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, sessionID)
	}

	var errs error
	for _, s := range b.sessionManager.InRoom(sessionID) {
		snap, err := snapshotFor(ctx, source, s.ParticipantID())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		data, err := json.Marshal(snap)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.Send(network.MsgTypeStateSnapshot, data); err != nil {
			// 发送失败的连接由读循环负责清理
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", s.ID, err))
		}
	}
	return errs
}

func snapshotFor(ctx context.Context, source StateSource, participantID string) (models.Snapshot, error) {
	if participantID != "" {
		snap, err := source.StateFor(ctx, participantID)
		if !errors.Is(err, apperr.ErrParticipantNotFound) {
			return snap, err
		}
	}
	return source.PublicState(ctx)
}
