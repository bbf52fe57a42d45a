package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/rovlink/internal/protocol/tlv"
	"github.com/danmuck/rovlink/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	payload := tlv.EncodeFields([]tlv.Field{{ID: 1, Type: tlv.TypeString, Value: []byte("armed")}})
	in := Frame{
		Header:  Header{Sequence: 42, Flags: 3},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != int(HeaderLen)+len(payload) {
		t.Fatalf("unexpected encoded size: %d", buf.Len())
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("header identity not stamped: %+v", out.Header)
	}
	if out.Header.Sequence != 42 || out.Header.Flags != 3 {
		t.Fatalf("header mismatch: got=%+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameBackToBack(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		if err := WriteFrame(&buf, Frame{Header: Header{Sequence: uint64(i)}, Payload: []byte{byte(i)}}, DefaultLimits()); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		f, err := ReadFrame(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if f.Header.Sequence != uint64(i) || f.Payload[0] != byte(i) {
			t.Fatalf("frame %d out of order: %+v", i, f)
		}
	}
	if _, err := ReadFrame(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on drained stream, got %v", err)
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameInvalidMagic(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: 1, Version: Version})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadFrameUnsupportedVersion(t *testing.T) {
	testlog.Start(t)
	buf := EncodeHeader(Header{Magic: Magic, Version: Version + 1})
	_, err := ReadFrame(bytes.NewReader(buf), DefaultLimits())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadFramePayloadLimits(t *testing.T) {
	testlog.Start(t)
	limits := Limits{MaxPayloadBytes: 4}
	buf := EncodeHeader(Header{Magic: Magic, Version: Version, PayloadLen: 5})
	if _, err := ReadFrame(bytes.NewReader(buf), limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if err := WriteFrame(io.Discard, Frame{Payload: make([]byte, 5)}, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on write, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Payload: []byte("abcdef")}, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	b := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadFrame(bytes.NewReader(b), DefaultLimits()); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}
