package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/hospital_portal/internal/models"
)

const (
	minPasswordLength = 8
	passwordSpecials  = "@$!%*?&"
)

type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	Gender          string
	Location        string
	IP              string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordViolations lists every password rule the candidate breaks, in a
// fixed order. Letter and digit classes are ASCII only. An empty result means
// the password is acceptable.
func PasswordViolations(password string) []string {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}

	var out []string
	if utf8.RuneCountInString(password) < minPasswordLength {
		out = append(out, "at least 8 characters")
	}
	if !hasUpper {
		out = append(out, "one uppercase letter")
	}
	if !hasLower {
		out = append(out, "one lowercase letter")
	}
	if !hasDigit {
		out = append(out, "one number")
	}
	if !hasSpecial {
		out = append(out, "one special character ("+passwordSpecials+")")
	}
	return out
}

func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return Validation("Passwords do not match", "confirmPassword")
	}
	if v := PasswordViolations(password); len(v) > 0 {
		return Validation("Password must contain "+strings.Join(v, ", "), "password")
	}
	return nil
}

func validateRegistration(in RegisterInput) error {
	var missing []string
	required := []struct {
		name, value string
	}{
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
		{"email", in.Email},
		{"phone", in.Phone},
		{"password", in.Password},
		{"confirmPassword", in.ConfirmPassword},
		{"gender", in.Gender},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Validation("Missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	if err := ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return err
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return Validation("Email is invalid", "email")
	}
	if !models.Gender(strings.ToLower(in.Gender)).Valid() {
		return Validation("Gender must be one of male, female, other", "gender")
	}
	return nil
}
