package security

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordNoUpper  = errors.New("password needs an uppercase letter")
	ErrPasswordNoDigit  = errors.New("password needs a digit")
	ErrPasswordMismatch = errors.New("invalid username or password")
)

type BcryptConfig struct {
	Cost      int // 10 by default
	MinLength int // 8 by default
}

func (c *BcryptConfig) minLength() int {
	if c != nil && c.MinLength > 0 {
		return c.MinLength
	}
	return 8
}

// ValidatePassword checks length, one uppercase letter and one digit.
func ValidatePassword(plain string, cfg *BcryptConfig) error {
	if len([]rune(plain)) < cfg.minLength() {
		return ErrPasswordTooShort
	}
	var upper, digit bool
	for _, r := range plain {
		upper = upper || unicode.IsUpper(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !upper {
		return ErrPasswordNoUpper
	}
	if !digit {
		return ErrPasswordNoDigit
	}
	return nil
}

func HashPassword(plain string, cfg *BcryptConfig) (string, error) {
	if err := ValidatePassword(plain, cfg); err != nil {
		return "", err
	}
	cost := bcrypt.DefaultCost
	if cfg != nil && cfg.Cost > 0 {
		cost = cfg.Cost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
