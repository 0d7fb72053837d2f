package auth

import "testing"

func TestNewTokenIsUnique(t *testing.T) {
	first, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	second, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if first == "" || second == "" {
		t.Fatal("expected non-empty tokens")
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	hash := HashToken(token)
	if hash == token {
		t.Fatal("hash must differ from the token")
	}
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}
	if HashToken(token) != hash {
		t.Fatal("hash must be deterministic")
	}
	if HashToken(token+"x") == hash {
		t.Fatal("different tokens must not collide")
	}
}
