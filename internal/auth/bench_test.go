package auth

import (
	"testing"
	"time"
)

// ─── Password hashing (Argon2id, intentionally slow) ─────────────────

func BenchmarkHash(b *testing.B) {
	h := NewHasher(DefaultPasswordParams())
	for i := 0; i < b.N; i++ {
		h.Hash("correct-horse-battery-staple") //nolint:errcheck // benchmark
	}
}

func BenchmarkVerify(b *testing.B) {
	h := NewHasher(DefaultPasswordParams())
	hash, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("Hash: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Verify("correct-horse-battery-staple", hash)
	}
}

// ─── JWT tokens (per-request hot path) ──────────────────────────────

func BenchmarkIssue(b *testing.B) {
	codec, err := NewTokenCodec("benchmark-secret-key-32-bytes-xx", "HS256", 15*time.Minute)
	if err != nil {
		b.Fatalf("NewTokenCodec: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Issue("bench", RoleAdmin) //nolint:errcheck // benchmark
	}
}

func BenchmarkDecode(b *testing.B) {
	codec, err := NewTokenCodec("benchmark-secret-key-32-bytes-xx", "HS256", 15*time.Minute)
	if err != nil {
		b.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, err := codec.Issue("bench", RoleAdmin)
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Decode(token) //nolint:errcheck // benchmark
	}
}
