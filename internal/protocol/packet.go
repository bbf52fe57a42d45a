package protocol

import "fmt"

// Version is the payload layout version carried in the first payload byte.
const Version uint8 = 1

// Tag identifies one packet variant on the wire.
type Tag uint8

const (
	TagStoreUpdate Tag = 1
	TagStateBatch  Tag = 2
	TagRequestSync Tag = 3
	TagPing        Tag = 4
	TagPong        Tag = 5
)

func (t Tag) String() string {
	switch t {
	case TagStoreUpdate:
		return "store_update"
	case TagStateBatch:
		return "state_batch"
	case TagRequestSync:
		return "request_sync"
	case TagPing:
		return "ping"
	case TagPong:
		return "pong"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Packet is the closed set of application packets.
type Packet interface {
	Tag() Tag
}

// StoreUpdate carries one keyed store change. Delete is set when the key was
// removed; Data is nil in that case.
type StoreUpdate struct {
	Key    string
	Data   []byte
	Delete bool
}

// StateBatch carries many store changes at once, used for full-state resync.
type StateBatch struct {
	Updates []StoreUpdate
}

// RequestSync asks the peer to resend its complete state.
type RequestSync struct{}

// Ping carries the sender's wall clock in unix milliseconds.
type Ping struct {
	SentMS uint64
}

// Pong echoes a Ping with the responder's wall clock.
type Pong struct {
	PingMS uint64
	PongMS uint64
}

func (StoreUpdate) Tag() Tag { return TagStoreUpdate }
func (StateBatch) Tag() Tag  { return TagStateBatch }
func (RequestSync) Tag() Tag { return TagRequestSync }
func (Ping) Tag() Tag        { return TagPing }
func (Pong) Tag() Tag        { return TagPong }
