// Package hasher recognizes stored password hash encodings and verifies
// candidate passwords against them.
//
// Supported encodings, selected by the shape of the stored value:
//
//   - bcrypt ($2$, $2a$, $2b$, $2x$, $2y$)
//   - Apache md5-crypt ($apr1$) and plain md5-crypt ($1$)
//   - traditional 13-character DES crypt (legacy, verify only)
//   - {plain} literal passwords (legacy)
//   - {SHA} base64 SHA-1 digests (legacy)
//
// Anything else fails verification. Verify never panics on malformed input.
package hasher

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/apr1_crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"golang.org/x/crypto/bcrypt"
)

// Scheme identifies a hash encoding.
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeAPR1     Scheme = "apr1"
	SchemeMD5Crypt Scheme = "md5"
	SchemeCrypt    Scheme = "crypt"
	SchemePlain    Scheme = "plain"
	SchemeSHA      Scheme = "sha"
	SchemeUnknown  Scheme = "unknown"
)

// DefaultBcryptCost is the cost used by Hash for new bcrypt hashes.
const DefaultBcryptCost = 10

const (
	apr1Magic = apr1_crypt.MagicPrefix
	md5Magic  = md5_crypt.MagicPrefix
	plainTag  = "{plain}"
	shaTag    = "{SHA}"
)

// ErrUnsupportedScheme is returned by Hash for schemes that can only be verified.
var ErrUnsupportedScheme = errors.New("hasher: unsupported scheme for hashing")

// ErrEmptyPassword is returned by Hash for a {plain} entry without a password,
// which Verify would never accept.
var ErrEmptyPassword = errors.New("hasher: empty password")

var bcryptPrefixes = []string{"$2$", "$2a$", "$2b$", "$2x$", "$2y$"}

// Detect classifies a stored hash by its structural prefix or shape.
func Detect(stored string) Scheme {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return SchemeBcrypt
		}
	}
	switch {
	case strings.HasPrefix(stored, apr1Magic):
		return SchemeAPR1
	case strings.HasPrefix(stored, md5Magic):
		return SchemeMD5Crypt
	case strings.HasPrefix(stored, plainTag):
		return SchemePlain
	case strings.HasPrefix(stored, shaTag):
		return SchemeSHA
	case isDESCrypt(stored):
		return SchemeCrypt
	}
	return SchemeUnknown
}

// Verify reports whether password matches the stored hash.
func Verify(stored string, password []byte) bool {
	switch Detect(stored) {
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), password) == nil
	case SchemeAPR1:
		return verifyCrypt(apr1_crypt.New(), stored, password)
	case SchemeMD5Crypt:
		return verifyCrypt(md5_crypt.New(), stored, password)
	case SchemeCrypt:
		return constantTimeEqual(desCrypt(password, stored[:2]), stored)
	case SchemePlain:
		return nonEmptyEqual(string(password), stored[len(plainTag):])
	case SchemeSHA:
		return nonEmptyEqual(shaDigest(password), stored[len(shaTag):])
	default:
		return false
	}
}

// Hash produces a new stored hash for password using the given scheme.
// Only bcrypt, apr1, {SHA} and {plain} can be produced.
func Hash(scheme Scheme, password []byte) (string, error) {
	switch scheme {
	case SchemeBcrypt:
		return HashBcrypt(password, DefaultBcryptCost)
	case SchemeAPR1:
		stored, err := apr1_crypt.New().Generate(password, nil)
		if err != nil {
			return "", fmt.Errorf("apr1: %w", err)
		}
		return stored, nil
	case SchemeSHA:
		return shaTag + shaDigest(password), nil
	case SchemePlain:
		if len(password) == 0 {
			return "", ErrEmptyPassword
		}
		return plainTag + string(password), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// HashBcrypt hashes password with bcrypt at the given cost.
func HashBcrypt(password []byte, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// ParseScheme converts a user supplied scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeBcrypt, "":
		return SchemeBcrypt, nil
	case SchemeAPR1, "md5":
		return SchemeAPR1, nil
	case SchemeSHA, "sha1":
		return SchemeSHA, nil
	case SchemePlain, "clear":
		return SchemePlain, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: bcrypt, apr1, sha, plain)", ErrUnsupportedScheme, s)
	}
}

// verifyCrypt checks an md5-crypt style hash. A malformed salt section is a
// mismatch.
func verifyCrypt(c crypt.Crypter, stored string, password []byte) bool {
	return c.Verify(stored, password) == nil
}

func shaDigest(password []byte) string {
	sum := sha1.Sum(password)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// nonEmptyEqual is constantTimeEqual for tagged entries, where an empty
// stored value ("{plain}" or "{SHA}" alone) never matches.
func nonEmptyEqual(candidate, stored string) bool {
	if stored == "" {
		return false
	}
	return constantTimeEqual(candidate, stored)
}
