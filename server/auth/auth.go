// Package auth guards the admin surface with the single operator key from
// the environment. There are no user accounts; every admin caller shares
// ADMIN_API_KEY.
package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/queryon/queryon/internal/errs"
)

// KeyHeader carries the admin key on API requests. Feed readers cannot set
// headers, so the Atom route also accepts KeyQueryParam.
const (
	KeyHeader     = "X-Admin-Key"
	KeyQueryParam = "key"
)

// Check validates a presented admin key against the configured one. The
// configured value may be the plain key or a bcrypt hash of it; hashes keep
// the plaintext out of the environment. An empty configuration disables the
// admin surface entirely.
func Check(configured, provided string) error {
	if configured == "" {
		return errs.New(errs.KindUnauthorized, "admin api disabled: no admin key configured")
	}
	if provided == "" {
		return errs.New(errs.KindUnauthorized, "missing admin key")
	}
	if isBcryptHash(configured) {
		if err := bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)); err != nil {
			return errs.New(errs.KindUnauthorized, "invalid admin key")
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) != 1 {
		return errs.New(errs.KindUnauthorized, "invalid admin key")
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
