package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordMinLen   = 8
	PasswordMaxBytes = 72
	UsernameMaxLen   = 150
	tokenBytes       = 20
	similarityMinLen = 3
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// commonPasswords is a short deny list of the most frequently leaked passwords.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "welcome1": {}, "admin123": {},
	"letmein1": {}, "trustno1": {}, "passw0rd": {}, "superman": {}, "11111111": {},
	"abc12345": {}, "monkey123": {}, "dragon123": {}, "master123": {}, "changeme": {},
}

// HashPassword hashes password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken returns a fresh 40 character hex token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// PasswordProblems lists every policy violation of password for the given identity.
func PasswordProblems(password, username, email string) []string {
	var problems []string
	if utf8.RuneCountInString(password) < PasswordMinLen {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", PasswordMinLen))
	}
	// bcrypt refuses longer input outright.
	if len(password) > PasswordMaxBytes {
		problems = append(problems, fmt.Sprintf("Ensure this field has no more than %d bytes.", PasswordMaxBytes))
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		problems = append(problems, "This password is entirely numeric.")
	}
	if attr := similarAttribute(password, username, email); attr != "" {
		problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	return problems
}

func similarAttribute(password, username, email string) string {
	lower := strings.ToLower(password)
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	for _, a := range []struct{ name, value string }{
		{"username", strings.ToLower(username)},
		{"email address", local},
	} {
		if len(a.value) < similarityMinLen {
			continue
		}
		if strings.Contains(lower, a.value) || strings.Contains(a.value, lower) {
			return a.name
		}
	}
	return ""
}

// ValidateUsername returns the message for a malformed username, or "".
func ValidateUsername(username string) string {
	switch {
	case username == "":
		return MsgRequired
	case utf8.RuneCountInString(username) > UsernameMaxLen:
		return fmt.Sprintf("Ensure this field has no more than %d characters.", UsernameMaxLen)
	case !usernamePattern.MatchString(username):
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return ""
}

// NormalizeEmail trims and lowercases the domain, returning a message when malformed.
func NormalizeEmail(email string) (string, string) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", MsgRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return email, "Enter a valid email address."
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || !strings.Contains(domain, ".") {
		return email, "Enter a valid email address."
	}
	return local + "@" + strings.ToLower(domain), ""
}
