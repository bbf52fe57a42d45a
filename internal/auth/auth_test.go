package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/rovlink/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  StaticToken
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "prefix denied", stored: "abc", input: "ab", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.stored.Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCheckHeader(t *testing.T) {
	testlog.Start(t)
	v := StaticToken("s3cret")
	tests := []struct {
		header  string
		wantErr error
	}{
		{"Bearer s3cret", nil},
		{"bearer  s3cret ", nil},
		{"Bearer wrong", ErrUnauthorized},
		{"Basic s3cret", ErrMissingToken},
		{"Bearer ", ErrMissingToken},
		{"", ErrMissingToken},
	}
	for _, tc := range tests {
		if err := CheckHeader(v, tc.header); !errors.Is(err, tc.wantErr) {
			t.Fatalf("header %q: expected %v, got %v", tc.header, tc.wantErr, err)
		}
	}
}
