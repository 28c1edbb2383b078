package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticTokenAuthenticator(t *testing.T) {
	a, err := NewStaticTokenAuthenticator("s3cret")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	info, err := a.CheckAuthentication(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if info.UserID() == "" {
		t.Fatal("empty user id")
	}

	for _, tok := range []string{"", "wrong", "s3cret ", "S3CRET"} {
		if _, err := a.CheckAuthentication(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q: err = %v, want ErrUnauthorized", tok, err)
		}
	}
}

func TestStaticTokenAuthenticatorRejectsEmptyToken(t *testing.T) {
	if _, err := NewStaticTokenAuthenticator(""); err == nil {
		t.Fatal("empty configured token accepted")
	}
}
