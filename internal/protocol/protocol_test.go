package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/rovlink/internal/protocol/tlv"
	"github.com/danmuck/rovlink/internal/testutil/testlog"
)

func TestRoundTripEveryPacket(t *testing.T) {
	testlog.Start(t)
	cases := []Packet{
		StoreUpdate{Key: "armed", Data: []byte(`"Armed"`)},
		StoreUpdate{Key: "armed", Delete: true},
		StoreUpdate{Key: "empty", Data: []byte{}},
		StateBatch{Updates: []StoreUpdate{
			{Key: "armed", Data: []byte(`"Disarmed"`)},
			{Key: "motor_speed.1", Delete: true},
		}},
		StateBatch{Updates: []StoreUpdate{}},
		RequestSync{},
		Ping{SentMS: 1760000000123},
		Pong{PingMS: 1760000000123, PongMS: 1760000000150},
	}
	for _, in := range cases {
		b, err := Encode(in)
		if err != nil {
			t.Fatalf("encode %T: %v", in, err)
		}
		out, err := Decode(b)
		if err != nil {
			t.Fatalf("decode %T: %v", in, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: in=%#v out=%#v", in, out)
		}
		again, err := Encode(out)
		if err != nil {
			t.Fatalf("re-encode %T: %v", out, err)
		}
		if !bytes.Equal(b, again) {
			t.Fatalf("re-encode not byte stable for %T", in)
		}
	}
}

func TestEncodePointerPackets(t *testing.T) {
	testlog.Start(t)
	a, err := Encode(&Ping{SentMS: 5})
	if err != nil {
		t.Fatalf("encode pointer: %v", err)
	}
	b, err := Encode(Ping{SentMS: 5})
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("pointer and value encodings differ")
	}
}

func TestEncodeRejectsInconsistentPackets(t *testing.T) {
	testlog.Start(t)
	if _, err := Encode(StoreUpdate{Key: "k", Data: []byte{1}, Delete: true}); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if _, err := Encode(StoreUpdate{Data: []byte{1}}); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal for empty key, got %v", err)
	}
	if _, err := Encode(nil); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal for nil, got %v", err)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	testlog.Start(t)
	valid, err := Encode(StoreUpdate{Key: "armed", Data: []byte("x")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := map[string][]byte{
		"empty":       {},
		"short":       {Version},
		"version":     append([]byte{Version + 1}, valid[1:]...),
		"unknown tag": {Version, 99},
		"truncated":   valid[:len(valid)-1],
		"missing key": {Version, byte(TagStoreUpdate)},
		"wrong type":  append([]byte{Version, byte(TagPing)}, tlv.EncodeField(tlv.String(FieldSentMS, "x"))...),
		"bad u64":     append([]byte{Version, byte(TagPing)}, tlv.EncodeField(tlv.Field{ID: FieldSentMS, Type: tlv.TypeU64, Value: []byte{1}})...),
		"bad entry":   append([]byte{Version, byte(TagStateBatch)}, tlv.EncodeField(tlv.Bytes(FieldEntry, []byte{1, 2}))...),
		"no delete":   append([]byte{Version, byte(TagStoreUpdate)}, tlv.EncodeField(tlv.String(FieldKey, "armed"))...),
		"no data": append([]byte{Version, byte(TagStoreUpdate)}, tlv.EncodeFields([]tlv.Field{
			tlv.String(FieldKey, "armed"), tlv.Bool(FieldDelete, false),
		})...),
		"delete with data": append([]byte{Version, byte(TagStoreUpdate)}, tlv.EncodeFields([]tlv.Field{
			tlv.String(FieldKey, "armed"), tlv.Bool(FieldDelete, true), tlv.Bytes(FieldData, []byte("x")),
		})...),
		"bad bool": append([]byte{Version, byte(TagStoreUpdate)}, tlv.EncodeFields([]tlv.Field{
			tlv.String(FieldKey, "armed"), {ID: FieldDelete, Type: tlv.TypeBool, Value: []byte{7}},
		})...),
	}
	for name, payload := range cases {
		_, err := Decode(payload)
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected ErrDecode, got %v", name, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("%s: expected *DecodeError, got %T", name, err)
		}
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	testlog.Start(t)
	payload := []byte{Version, byte(TagPing)}
	payload = append(payload, tlv.EncodeFields([]tlv.Field{
		tlv.U64(FieldSentMS, 9),
		tlv.String(900, "future"),
	})...)
	p, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, ok := p.(Ping); !ok || got.SentMS != 9 {
		t.Fatalf("unexpected packet: %#v", p)
	}
}
