package auth

import (
	"errors"
	"testing"
	"time"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(CodecConfig{Secret: "secret", Issuer: "issuer", Audience: "aud"})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	c := newCodec(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, issued, err := c.Sign(now, "user-1", TokenClassAccess, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if tok == "" || issued.ID == "" {
		t.Fatalf("expected token and jti")
	}

	claims, err := c.Verify(tok, TokenClassAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID() != "user-1" || claims.Class != TokenClassAccess || claims.ID != issued.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsAfterExpiry(t *testing.T) {
	c := newCodec(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, _, err := c.Sign(now, "u", TokenClassAccess, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Past ttl plus leeway.
	_, err = c.Verify(tok, TokenClassAccess, now.Add(2*time.Minute))
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrInvalidToken wrapping ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsWrongClass(t *testing.T) {
	c := newCodec(t)
	now := time.Now()
	tok, _, err := c.Sign(now, "u", TokenClassRefresh, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = c.Verify(tok, TokenClassAccess, now)
	if !errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpired) {
		t.Fatalf("expected class mismatch, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	userCodec := newCodec(t)
	adminCodec, err := NewCodec(CodecConfig{Secret: "other", Issuer: "issuer", Audience: "aud"})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	now := time.Now()
	tok, _, err := adminCodec.Sign(now, "a", TokenClassAdmin, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := userCodec.Verify(tok, TokenClassAdmin, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	c := newCodec(t)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		if _, err := c.Verify(tok, TokenClassAccess, time.Now()); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestSignRejectsUnknownClass(t *testing.T) {
	c := newCodec(t)
	if _, _, err := c.Sign(time.Now(), "u", TokenClass("root"), time.Minute); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	digest, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Verify("correct horse", digest) {
		t.Fatalf("expected match")
	}
	if h.Verify("wrong", digest) {
		t.Fatalf("expected mismatch")
	}
	if h.Verify("correct horse", "not-a-digest") {
		t.Fatalf("malformed digest must not match")
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	a := HashToken("tok")
	if a != HashToken("tok") || a == HashToken("tok2") {
		t.Fatalf("expected deterministic, distinct hashes")
	}
	if len(a) != 64 || a == "tok" {
		t.Fatalf("unexpected hash %q", a)
	}
}
