package store

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"linechat/internal/auth"
)

var (
	ErrUserExists      = errors.New("store: user already exists")
	ErrBadCredentials  = errors.New("store: bad credentials")
	ErrInvalidToken    = errors.New("store: invalid token")
	ErrInvalidUsername = errors.New("store: invalid username")
)

// AIAuthor is the author name used for AI room replies; nobody may register it.
const AIAuthor = "ai"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// AuthDb owns the credential map and token minting. Every operation holds
// one exclusive lock, including the write to the credential log, so the
// in-memory map and the log never disagree.
type AuthDb struct {
	mu     sync.Mutex
	creds  map[string]auth.Credential
	log    CredentialLog
	tokens *auth.TokenManager
	hasher *auth.Hasher
}

// NewAuthDb replays log into memory.
func NewAuthDb(log CredentialLog, tokens *auth.TokenManager, hasher *auth.Hasher) (*AuthDb, error) {
	creds, err := log.Load()
	if err != nil {
		return nil, err
	}
	return &AuthDb{creds: creds, log: log, tokens: tokens, hasher: hasher}, nil
}

// Register creates user and returns a fresh token.
func (db *AuthDb) Register(user, pass string) (string, error) {
	if !usernamePattern.MatchString(user) || user == AIAuthor {
		return "", ErrInvalidUsername
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.creds[user]; exists {
		return "", ErrUserExists
	}

	cred, err := db.hasher.Hash(pass)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	token, err := db.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	db.creds[user] = cred
	if err := db.log.Append(user, cred); err != nil {
		delete(db.creds, user)
		return "", err
	}
	return token, nil
}

// LoginPass checks a password and returns a fresh token.
func (db *AuthDb) LoginPass(user, pass string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cred, ok := db.creds[user]
	if !ok || !db.hasher.Verify(pass, cred) {
		return "", ErrBadCredentials
	}
	token, err := db.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// LoginToken resolves token and rotates it, returning the username and a
// fresh token for the same user.
func (db *AuthDb) LoginToken(token string) (user, fresh string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.tokens.Validate(token)
	if !ok {
		return "", "", ErrInvalidToken
	}
	if _, known := db.creds[user]; !known {
		return "", "", ErrInvalidToken
	}
	fresh, err = db.tokens.Issue(user)
	if err != nil {
		return "", "", fmt.Errorf("issue token: %w", err)
	}
	return user, fresh, nil
}

// Users returns the number of registered users.
func (db *AuthDb) Users() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.creds)
}
