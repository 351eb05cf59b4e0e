package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost parameters stored alongside each hash.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams follows the argon2id recommendation for interactive logins.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

const saltLen = 16

var errBadParams = errors.New("auth: malformed hash parameters")

// Credential is a salted password hash. The plaintext is never kept.
type Credential struct {
	Salt   []byte
	Hash   []byte
	Params Params
}

// String renders the parameters in the PHC style used by the credential log.
func (p Params) String() string {
	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d,k=%d", argon2.Version, p.Memory, p.Time, p.Threads, p.KeyLen)
}

// ParseParams is the inverse of Params.String.
func ParseParams(s string) (Params, error) {
	var (
		p       Params
		version int
	)
	n, err := fmt.Sscanf(s, "argon2id$v=%d$m=%d,t=%d,p=%d,k=%d", &version, &p.Memory, &p.Time, &p.Threads, &p.KeyLen)
	if err != nil || n != 5 || version != argon2.Version || p.KeyLen == 0 || p.Threads == 0 {
		return Params{}, errBadParams
	}
	return p, nil
}

// Hasher derives and checks password hashes.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash derives a credential for password with a fresh random salt.
func (h *Hasher) Hash(password string) (Credential, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, err
	}
	return Credential{
		Salt:   salt,
		Hash:   derive(password, salt, h.params),
		Params: h.params,
	}, nil
}

// Verify reports whether password matches cred, using cred's own parameters.
func (h *Hasher) Verify(password string, cred Credential) bool {
	got := derive(password, cred.Salt, cred.Params)
	return subtle.ConstantTimeCompare(got, cred.Hash) == 1
}

func derive(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}
