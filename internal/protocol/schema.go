package protocol

import (
	"github.com/danmuck/rovlink/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Field IDs used inside packet payloads.
const (
	FieldKey    uint16 = 1
	FieldData   uint16 = 2
	FieldEntry  uint16 = 3
	FieldSentMS uint16 = 4
	FieldPongMS uint16 = 5
	FieldDelete uint16 = 6
)

type Requirement struct {
	ID   uint16
	Type uint8
}

var requirements = map[Tag][]Requirement{
	TagStoreUpdate: {
		{FieldKey, tlv.TypeString},
		{FieldDelete, tlv.TypeBool},
	},
	TagStateBatch:  {},
	TagRequestSync: {},
	TagPing: {
		{FieldSentMS, tlv.TypeU64},
	},
	TagPong: {
		{FieldSentMS, tlv.TypeU64},
		{FieldPongMS, tlv.TypeU64},
	},
}

// validate enforces required fields and their types for a tag.
// Unknown fields are ignored so newer peers can add optional fields.
func validate(tag Tag, fields []tlv.Field) error {
	reqs, ok := requirements[tag]
	if !ok {
		log.Debug().Uint8("tag", uint8(tag)).Msg("protocol.validate unknown tag")
		return decodeErr(tag, "unknown tag", nil)
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			return decodeErr(tag, "missing required field", nil)
		}
		if err := tlv.MustType(f, req.Type); err != nil {
			return decodeErr(tag, "field type mismatch", err)
		}
	}
	return nil
}
