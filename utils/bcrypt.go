package utils

import "golang.org/x/crypto/bcrypt"

const MinPasswordLength = 6

func HashPassword(s string) (string, error) {
	if len(s) < MinPasswordLength {
		return "", ValidationErrorf("password must have at least %d characters", MinPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}

// PasswordMatches treats every bcrypt failure, including a malformed hash, as a mismatch.
func PasswordMatches(hashed string, normal string) bool {
	return ComparePassword(hashed, normal) == nil
}
