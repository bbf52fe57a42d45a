// Package events defines the closed event union carried on the bus and the
// bus itself.
package events

import (
	"fmt"

	"github.com/danmuck/rovlink/internal/network"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/danmuck/rovlink/internal/store"
)

// Event is implemented only by the types in this file. Events are immutable
// once published.
type Event interface {
	eventName() string
}

// PeerConnected fires when the guard installs a new current peer.
type PeerConnected struct{ Endpoint network.Endpoint }

// PeerDisconnected fires when the current peer goes away or is replaced.
type PeerDisconnected struct{ Endpoint network.Endpoint }

// ConnectionFailed reports an outbound connect that never completed.
type ConnectionFailed struct {
	Endpoint network.Endpoint
	Err      error
}

// SharedUpdate is a store change received from the peer.
type SharedUpdate struct{ Update store.Update }

// BroadcastUpdate is a local change that must be sent to the peer.
type BroadcastUpdate struct{ Update store.Update }

// StateUpdate asks the robot coordinator to apply a batch atomically.
type StateUpdate struct{ Updates []store.Update }

// StateRefresh asks the robot coordinator to resend its full state.
type StateRefresh struct{}

// ResetShared tells store owners to drop peer-sourced entries.
type ResetShared struct{}

// SyncStore tells derived-state owners to republish on next recompute.
type SyncStore struct{}

// PacketSend asks the link owner to send a packet as is.
type PacketSend struct{ Packet protocol.Packet }

// Error carries a contained failure for observers.
type Error struct {
	Source string
	Err    error
}

// Exit stops every system loop.
type Exit struct{}

func (PeerConnected) eventName() string    { return "peer_connected" }
func (PeerDisconnected) eventName() string { return "peer_disconnected" }
func (ConnectionFailed) eventName() string { return "connection_failed" }
func (SharedUpdate) eventName() string     { return "shared_update" }
func (BroadcastUpdate) eventName() string  { return "broadcast_update" }
func (StateUpdate) eventName() string      { return "state_update" }
func (StateRefresh) eventName() string     { return "state_refresh" }
func (ResetShared) eventName() string      { return "reset_shared" }
func (SyncStore) eventName() string        { return "sync_store" }
func (PacketSend) eventName() string       { return "packet_send" }
func (Error) eventName() string            { return "error" }
func (Exit) eventName() string             { return "exit" }

// Name returns a stable label for logs and filters.
func Name(ev Event) string {
	if ev == nil {
		return "nil"
	}
	return ev.eventName()
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}
