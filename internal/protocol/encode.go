package protocol

import (
	"github.com/danmuck/rovlink/internal/protocol/tlv"
)

// Encode renders p as a payload: version byte, tag byte, tlv fields.
func Encode(p Packet) ([]byte, error) {
	if p == nil {
		return nil, internalErr("nil packet")
	}
	fields, err := packetFields(p)
	if err != nil {
		return nil, err
	}
	body := tlv.EncodeFields(fields)
	out := make([]byte, 0, 2+len(body))
	out = append(out, Version, byte(p.Tag()))
	return append(out, body...), nil
}

func packetFields(p Packet) ([]tlv.Field, error) {
	switch pk := p.(type) {
	case StoreUpdate:
		return storeUpdateFields(pk)
	case *StoreUpdate:
		return storeUpdateFields(*pk)
	case StateBatch:
		return stateBatchFields(pk)
	case *StateBatch:
		return stateBatchFields(*pk)
	case RequestSync, *RequestSync:
		return nil, nil
	case Ping:
		return []tlv.Field{tlv.U64(FieldSentMS, pk.SentMS)}, nil
	case *Ping:
		return []tlv.Field{tlv.U64(FieldSentMS, pk.SentMS)}, nil
	case Pong:
		return pongFields(pk), nil
	case *Pong:
		return pongFields(*pk), nil
	default:
		return nil, internalErr("unsupported packet %T", p)
	}
}

func storeUpdateFields(u StoreUpdate) ([]tlv.Field, error) {
	if u.Key == "" {
		return nil, internalErr("store update with empty key")
	}
	if u.Delete && u.Data != nil {
		return nil, internalErr("store update key=%s is a delete but carries data", u.Key)
	}
	fields := []tlv.Field{tlv.String(FieldKey, u.Key), tlv.Bool(FieldDelete, u.Delete)}
	if !u.Delete {
		data := u.Data
		if data == nil {
			data = []byte{}
		}
		fields = append(fields, tlv.Bytes(FieldData, data))
	}
	return fields, nil
}

func stateBatchFields(b StateBatch) ([]tlv.Field, error) {
	fields := make([]tlv.Field, 0, len(b.Updates))
	for _, u := range b.Updates {
		entry, err := storeUpdateFields(u)
		if err != nil {
			return nil, err
		}
		fields = append(fields, tlv.Bytes(FieldEntry, tlv.EncodeFields(entry)))
	}
	return fields, nil
}

func pongFields(p Pong) []tlv.Field {
	return []tlv.Field{
		tlv.U64(FieldSentMS, p.PingMS),
		tlv.U64(FieldPongMS, p.PongMS),
	}
}
