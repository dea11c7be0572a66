package models

import (
	"strings"
	"time"
)

// FamilyStatus tells whether a family is a current member of the association
type FamilyStatus string

const (
	FamilyActive   FamilyStatus = "ACTIVE"
	FamilyInactive FamilyStatus = "INACTIVE"
)

// ParseFamilyStatus accepts the canonical names and the labels used by the
// association's older spreadsheets ("Activo", "Baja").
func ParseFamilyStatus(s string) (FamilyStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACTIVE", "ACTIVO", "ACTIVA":
		return FamilyActive, true
	case "INACTIVE", "BAJA":
		return FamilyInactive, true
	default:
		return "", false
	}
}

// MemberRole is a member's position in the household
type MemberRole string

const (
	MemberFather MemberRole = "FATHER"
	MemberMother MemberRole = "MOTHER"
	MemberChild  MemberRole = "CHILD"
	MemberTutor  MemberRole = "TUTOR"
)

// ParseMemberRole accepts the canonical names and the legacy Spanish labels
func ParseMemberRole(s string) (MemberRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FATHER", "PADRE":
		return MemberFather, true
	case "MOTHER", "MADRE":
		return MemberMother, true
	case "CHILD", "HIJO/A", "HIJO", "HIJA":
		return MemberChild, true
	case "TUTOR", "TUTORA":
		return MemberTutor, true
	default:
		return "", false
	}
}

// IsGuardian reports whether the role is a parent or tutor
func (r MemberRole) IsGuardian() bool {
	return r == MemberFather || r == MemberMother || r == MemberTutor
}

// Family is a household registered with the association. Members are owned
// by the family and never exist on their own.
type Family struct {
	ID               int64        `json:"id"`
	MembershipNumber string       `json:"membershipNumber"`
	Name             string       `json:"name"`
	Address          string       `json:"address"`
	Phone            string       `json:"phone"`
	Email            string       `json:"email"`
	JoinDate         string       `json:"joinDate"`
	Status           FamilyStatus `json:"status"`
	Members          []Member     `json:"members"`
	AISummary        string       `json:"aiSummary,omitempty"`
	CreatedBy        string       `json:"createdBy,omitempty"`
	CreatedAt        *time.Time   `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time   `json:"updatedAt,omitempty"`
}

// Member is an individual belonging to exactly one family
type Member struct {
	ID        int64      `json:"id"`
	FamilyID  int64      `json:"familyId"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	BirthDate string     `json:"birthDate"`
	Role      MemberRole `json:"role"`
	Gender    string     `json:"gender,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
}

// FullName joins first and last name
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// CountRole returns how many members have the given role
func (f *Family) CountRole(role MemberRole) int {
	n := 0
	for _, m := range f.Members {
		if m.Role == role {
			n++
		}
	}
	return n
}
