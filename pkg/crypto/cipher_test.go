package crypto

import (
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := SealString("secret", `{"logged_in":true}`)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	plain, err := OpenString("secret", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != `{"logged_in":true}` {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestOpenRejectsWrongSecret(t *testing.T) {
	sealed, err := SealString("secret", "payload")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := OpenString("other", sealed); err == nil {
		t.Fatal("expected authentication failure with wrong secret")
	}
}

func TestOpenRejectsTruncatedPayload(t *testing.T) {
	if _, err := DecryptToString("secret", []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short payload")
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := SealString("", "payload"); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
