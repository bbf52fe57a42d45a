package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/rovlink/internal/testutil/testlog"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	testlog.Start(t)
	in := []Field{
		String(1, "armed"),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	testlog.Start(t)
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestTypedAccessors(t *testing.T) {
	testlog.Start(t)
	if v, err := U64(1, 1760000000000).AsU64(); err != nil || v != 1760000000000 {
		t.Fatalf("u64: v=%d err=%v", v, err)
	}
	if v, err := Bool(1, true).AsBool(); err != nil || !v {
		t.Fatalf("bool: v=%v err=%v", v, err)
	}
	if _, err := String(1, "x").AsU64(); err == nil {
		t.Fatalf("expected type mismatch")
	}
	if _, err := (Field{ID: 1, Type: TypeU64, Value: []byte{1}}).AsU64(); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := (Field{ID: 1, Type: TypeBool, Value: []byte{2}}).AsBool(); err == nil {
		t.Fatalf("expected invalid bool error")
	}
}

func TestGetAllKeepsWireOrder(t *testing.T) {
	testlog.Start(t)
	fields := []Field{String(2, "a"), String(1, "x"), String(2, "b")}
	got := GetAll(fields, 2)
	if len(got) != 2 || string(got[0].Value) != "a" || string(got[1].Value) != "b" {
		t.Fatalf("unexpected fields: %+v", got)
	}
}
