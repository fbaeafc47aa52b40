// Package authn issues and verifies access/refresh tokens and hashes
// passwords for the credential-based login flow.
package authn

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash suitable for storage in
// User.password_hash.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
// bcrypt.CompareHashAndPassword runs in constant time with respect to the
// candidate password.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
