package auth

import (
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/gorilla/securecookie"
)

func newTestManager(ttl time.Duration) *TokenManager {
	return NewTokenManager(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32), ttl)
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		t.Errorf("token must be a single protocol word, got %q", token)
	}

	user, ok := m.Validate(token)
	if !ok {
		t.Fatal("Validate() rejected a fresh token")
	}
	if user != "alice" {
		t.Errorf("user = %s, want alice", user)
	}
}

func TestTokenManager_Uniqueness(t *testing.T) {
	m := newTestManager(time.Hour)
	tokens := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, err := m.Issue("alice")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}
}

func TestTokenManager_RotationKeepsOldTokens(t *testing.T) {
	m := newTestManager(time.Hour)

	first, _ := m.Issue("bob")
	second, _ := m.Issue("bob")

	if _, ok := m.Validate(first); !ok {
		t.Error("earlier token should stay valid after a new one is issued")
	}
	if _, ok := m.Validate(second); !ok {
		t.Error("new token should be valid")
	}
}

func TestTokenManager_RejectsForeignAndGarbage(t *testing.T) {
	m := newTestManager(time.Hour)
	other := newTestManager(time.Hour)

	foreign, _ := other.Issue("mallory")
	for _, token := range []string{"", "garbage", foreign} {
		if _, ok := m.Validate(token); ok {
			t.Errorf("Validate(%q) should fail", token)
		}
	}
}

func TestKeyFromEnv(t *testing.T) {
	t.Setenv("LINECHAT_TEST_KEY", strings.Repeat("ab", 32))
	key := KeyFromEnv("LINECHAT_TEST_KEY", 32)
	if len(key) != 32 || key[0] != 0xab {
		t.Errorf("KeyFromEnv() = %x, want 32 bytes of 0xab", key)
	}

	t.Setenv("LINECHAT_TEST_KEY", "not-hex")
	if got := KeyFromEnv("LINECHAT_TEST_KEY", 32); len(got) != 32 {
		t.Errorf("random fallback length = %d, want 32", len(got))
	}
}
