package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ampa/internal/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
)

// DateLayout is the format of join and birth dates
const DateLayout = "2006-01-02"

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateUsername checks if a login name is valid
func ValidateUsername(username string) error {
	if username == "" {
		return ValidationError{Field: "username", Message: "username is required"}
	}
	if len(username) < 3 || len(username) > 64 {
		return ValidationError{Field: "username", Message: "username must be between 3 and 64 characters"}
	}
	if !usernameRegex.MatchString(username) {
		return ValidationError{Field: "username", Message: "username may only contain letters, digits, '.', '_' and '-'"}
	}
	return nil
}

// ValidateRole parses an account role
func ValidateRole(role string) (models.Role, error) {
	r, ok := models.ParseRole(role)
	if !ok {
		return "", ValidationError{Field: "role", Message: "role must be USER, ADMIN or SUPERADMIN"}
	}
	return r, nil
}

// ValidateDate checks an optional YYYY-MM-DD date
func ValidateDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return ValidationError{Field: field, Message: "date must use the YYYY-MM-DD format"}
	}
	return nil
}

// ValidateMember checks a member and normalises its role and text fields
func ValidateMember(m *models.Member, index int) error {
	field := func(name string) string {
		return fmt.Sprintf("members[%d].%s", index, name)
	}

	trimMember(m)
	if m.FirstName == "" {
		return ValidationError{Field: field("firstName"), Message: "first name is required"}
	}
	if m.LastName == "" {
		return ValidationError{Field: field("lastName"), Message: "last name is required"}
	}

	role, ok := models.ParseMemberRole(string(m.Role))
	if !ok {
		return ValidationError{Field: field("role"), Message: "role must be FATHER, MOTHER, CHILD or TUTOR"}
	}
	m.Role = role

	return ValidateDate(field("birthDate"), m.BirthDate)
}

// ValidateFamily checks a family with its members. The family is normalised
// in place: text is trimmed and an empty status defaults to ACTIVE.
func ValidateFamily(f *models.Family) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Address = strings.TrimSpace(f.Address)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.JoinDate = strings.TrimSpace(f.JoinDate)
	f.MembershipNumber = strings.TrimSpace(f.MembershipNumber)

	if f.Name == "" {
		return ValidationError{Field: "name", Message: "family name is required"}
	}

	if f.Status == "" {
		f.Status = models.FamilyActive
	} else {
		status, ok := models.ParseFamilyStatus(string(f.Status))
		if !ok {
			return ValidationError{Field: "status", Message: "status must be ACTIVE or INACTIVE"}
		}
		f.Status = status
	}

	if err := ValidateDate("joinDate", f.JoinDate); err != nil {
		return err
	}

	for i := range f.Members {
		if err := ValidateMember(&f.Members[i], i); err != nil {
			return err
		}
	}
	return nil
}

func trimMember(m *models.Member) {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.BirthDate = strings.TrimSpace(m.BirthDate)
	m.Gender = strings.TrimSpace(m.Gender)
	m.Notes = strings.TrimSpace(m.Notes)
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
}
