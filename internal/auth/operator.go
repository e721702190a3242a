package auth

import "golang.org/x/crypto/bcrypt"

// VerifyOperatorKey reports whether key matches the configured bcrypt hash.
func VerifyOperatorKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
