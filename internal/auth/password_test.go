package auth

import (
	"strings"
	"testing"
)

// Cost 4 is the bcrypt minimum — tests would crawl at the production cost.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(4)
}

func TestHashAndVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("Secret123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "Secret123" {
		t.Fatal("Hash() returned the plaintext")
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash() = %q, want bcrypt format", hash)
	}

	if !ps.Verify(hash, "Secret123") {
		t.Error("Verify() = false for the correct password")
	}
	if ps.Verify(hash, "wrong") {
		t.Error("Verify() = true for the wrong password")
	}
}

func TestHashIsSalted(t *testing.T) {
	ps := newTestPasswordService()

	h1, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing")
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("x", 73)); err == nil {
		t.Error("Hash() accepted a 73-byte password; bcrypt would truncate it")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	ps := newTestPasswordService()

	// A malformed digest is a mismatch, not a panic or a surprise error.
	if ps.Verify("not-a-bcrypt-hash", "anything") {
		t.Error("Verify() = true for a malformed digest")
	}
	if ps.Verify("", "anything") {
		t.Error("Verify() = true for an empty digest")
	}
}

func TestRandomPassword(t *testing.T) {
	p1, err := RandomPassword()
	if err != nil {
		t.Fatalf("RandomPassword() error = %v", err)
	}
	p2, err := RandomPassword()
	if err != nil {
		t.Fatalf("RandomPassword() error = %v", err)
	}

	if p1 == p2 {
		t.Error("two generated passwords are identical")
	}
	if len(p1) < 32 {
		t.Errorf("generated password is only %d chars", len(p1))
	}
	if len(p1) > 72 {
		t.Errorf("generated password is %d bytes, over the bcrypt limit", len(p1))
	}
}
