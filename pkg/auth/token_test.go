package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("hard to guess string", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	codec := newTestCodec(t, clock)

	token, err := codec.Issue(Payload{AccountID: 42, Purpose: PurposeChangeEmail, NewEmail: "susan@example.org"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.AccountID != 42 || p.Purpose != PurposeChangeEmail || p.NewEmail != "susan@example.org" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestTokenExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	codec := newTestCodec(t, clock)

	token, err := codec.Issue(Payload{AccountID: 1, Purpose: PurposeConfirm}, time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got: %v", err)
	}
}

func TestTokenNeverExpiresEarly(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 900*int64(time.Millisecond))}
	codec := newTestCodec(t, clock)

	token, err := codec.Issue(Payload{AccountID: 1, Purpose: PurposeConfirm}, time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(500 * time.Millisecond)
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("token expired before its ttl: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got: %v", err)
	}
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)
	other, err := NewTokenCodec("another secret", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := other.Issue(Payload{AccountID: 1, Purpose: PurposeReset}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to fail, got: %v", err)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	token, err := codec.Issue(Payload{AccountID: 1, Purpose: PurposeReset}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact token, got %q", token)
	}
	forged, err := codec.Issue(Payload{AccountID: 2, Purpose: PurposeReset}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Graft the second payload onto the first signature.
	tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	for _, bad := range []string{"", "garbage", "a.b.c", tampered} {
		if _, err := codec.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) expected ErrInvalidToken, got: %v", bad, err)
		}
	}
}

func TestVerifyForChecksPurposeAndSubject(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	codec := newTestCodec(t, clock)

	token, err := codec.Issue(Payload{AccountID: 7, Purpose: PurposeConfirm}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name    string
		purpose Purpose
		id      int64
		want    bool
	}{
		{"matching", PurposeConfirm, 7, true},
		{"other account", PurposeConfirm, 8, false},
		{"other purpose", PurposeReset, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := codec.VerifyFor(token, tt.purpose, tt.id); ok != tt.want {
				t.Errorf("VerifyFor() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestIssueValidation(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{now: time.Now()})
	if _, err := codec.Issue(Payload{AccountID: 1, Purpose: PurposeConfirm}, 0); err == nil {
		t.Error("expected error for zero ttl")
	}
	if _, err := codec.Issue(Payload{AccountID: 1}, time.Hour); err == nil {
		t.Error("expected error for missing purpose")
	}
	if _, err := NewTokenCodec(""); err == nil {
		t.Error("expected error for empty secret")
	}
}
