package auth

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
)

const tokenName = "linechat-token"

// TokenManager mints and resolves login tokens. Tokens are signed and
// encrypted, carry the username, and expire after the configured TTL.
// Minting a new token does not revoke earlier ones.
type TokenManager struct {
	sc *securecookie.SecureCookie
}

type tokenClaims struct {
	User  string `json:"u"`
	Nonce string `json:"n"`
}

// NewTokenManager creates a token manager. Keys must be 32 bytes.
func NewTokenManager(hashKey, blockKey []byte, ttl time.Duration) *TokenManager {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(ttl.Seconds()))
	return &TokenManager{sc: sc}
}

// Issue mints a fresh token for user.
func (m *TokenManager) Issue(user string) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return m.sc.Encode(tokenName, tokenClaims{User: user, Nonce: hex.EncodeToString(nonce)})
}

// Validate returns the username bound to token, or false if the token is
// forged, malformed or expired.
func (m *TokenManager) Validate(token string) (string, bool) {
	var claims tokenClaims
	if err := m.sc.Decode(tokenName, token, &claims); err != nil {
		return "", false
	}
	if claims.User == "" {
		return "", false
	}
	return claims.User, true
}

// KeyFromEnv reads a hex encoded key from envVar or generates a random one.
// Random keys invalidate every token on restart.
func KeyFromEnv(envVar string, length int) []byte {
	keyHex := os.Getenv(envVar)
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err == nil && len(key) >= length {
			return key[:length]
		}
		log.Warn().Str("var", envVar).Msg("Key is invalid, generating random key")
	}

	key := securecookie.GenerateRandomKey(length)
	if key == nil {
		log.Fatal().Str("var", envVar).Msg("Failed to generate key")
	}
	log.Warn().Str("var", envVar).Msg("Key not set, using random key (tokens won't survive restarts)")
	return key
}
