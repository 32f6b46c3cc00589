package users

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// VerifyAndUpdatePassword validates the cleartext password and, when the
// stored hash was produced with a weaker cost than we currently use, returns
// a replacement hash the caller should persist. The returned string is empty
// when the stored hash is already up to date.
func VerifyAndUpdatePassword(password, hash string) (string, error) {
	if err := ComparePasswordAndHash(password, hash); err != nil {
		return "", err
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost >= passwordHashCost() {
		return "", nil
	}

	return HashPassword(password)
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
