package protocol

import (
	"github.com/danmuck/rovlink/internal/protocol/tlv"
)

// Decode parses one payload produced by Encode. Every failure wraps ErrDecode;
// input is untrusted and never panics the caller.
func Decode(payload []byte) (Packet, error) {
	if len(payload) < 2 {
		return nil, decodeErr(0, "short payload", nil)
	}
	if payload[0] != Version {
		return nil, decodeErr(Tag(payload[1]), "unsupported version", nil)
	}
	tag := Tag(payload[1])
	fields, err := tlv.DecodeFields(payload[2:])
	if err != nil {
		return nil, decodeErr(tag, "malformed fields", err)
	}
	if err := validate(tag, fields); err != nil {
		return nil, err
	}

	switch tag {
	case TagStoreUpdate:
		return decodeStoreUpdate(tag, fields)
	case TagStateBatch:
		entries := tlv.GetAll(fields, FieldEntry)
		batch := StateBatch{Updates: make([]StoreUpdate, 0, len(entries))}
		for _, e := range entries {
			raw, err := e.AsBytes()
			if err != nil {
				return nil, decodeErr(tag, "batch entry", err)
			}
			inner, err := tlv.DecodeFields(raw)
			if err != nil {
				return nil, decodeErr(tag, "batch entry fields", err)
			}
			if err := validate(TagStoreUpdate, inner); err != nil {
				return nil, decodeErr(tag, "batch entry", err)
			}
			u, err := decodeStoreUpdate(tag, inner)
			if err != nil {
				return nil, err
			}
			batch.Updates = append(batch.Updates, u)
		}
		return batch, nil
	case TagRequestSync:
		return RequestSync{}, nil
	case TagPing:
		sent, err := u64Field(tag, fields, FieldSentMS)
		if err != nil {
			return nil, err
		}
		return Ping{SentMS: sent}, nil
	case TagPong:
		ping, err := u64Field(tag, fields, FieldSentMS)
		if err != nil {
			return nil, err
		}
		pong, err := u64Field(tag, fields, FieldPongMS)
		if err != nil {
			return nil, err
		}
		return Pong{PingMS: ping, PongMS: pong}, nil
	}
	return nil, decodeErr(tag, "unknown tag", nil)
}

func decodeStoreUpdate(tag Tag, fields []tlv.Field) (StoreUpdate, error) {
	kf, _ := tlv.GetField(fields, FieldKey)
	key, err := kf.AsString()
	if err != nil {
		return StoreUpdate{}, decodeErr(tag, "key", err)
	}
	if key == "" {
		return StoreUpdate{}, decodeErr(tag, "empty key", nil)
	}
	delf, _ := tlv.GetField(fields, FieldDelete)
	del, err := delf.AsBool()
	if err != nil {
		return StoreUpdate{}, decodeErr(tag, "delete flag", err)
	}
	df, ok := tlv.GetField(fields, FieldData)
	switch {
	case del && ok:
		return StoreUpdate{}, decodeErr(tag, "delete carries data", nil)
	case del:
		return StoreUpdate{Key: key, Delete: true}, nil
	case !ok:
		return StoreUpdate{}, decodeErr(tag, "missing data", nil)
	}
	data, err := df.AsBytes()
	if err != nil {
		return StoreUpdate{}, decodeErr(tag, "data", err)
	}
	return StoreUpdate{Key: key, Data: data}, nil
}

func u64Field(tag Tag, fields []tlv.Field, id uint16) (uint64, error) {
	f, _ := tlv.GetField(fields, id)
	v, err := f.AsU64()
	if err != nil {
		return 0, decodeErr(tag, "u64 field", err)
	}
	return v, nil
}
