package token

import "golang.org/x/crypto/bcrypt"

// HashCost is the bcrypt cost used for stored passwords. Cost 12 keeps
// verification under a second while staying expensive to brute force.
const HashCost = 12

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), HashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plaintext password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
