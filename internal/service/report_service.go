package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/validation"
)

const (
	recentActivityWindow = 7 * 24 * time.Hour
	recentActivityLimit  = 10
)

// Bucket is a labelled count for charts
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ActivityEntry is a family touched recently
type ActivityEntry struct {
	FamilyID         int64      `json:"familyId"`
	MembershipNumber string     `json:"membershipNumber"`
	Name             string     `json:"name"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// Dashboard holds the aggregate figures of the registry
type Dashboard struct {
	TotalFamilies     int             `json:"totalFamilies"`
	ActiveFamilies    int             `json:"activeFamilies"`
	InactiveFamilies  int             `json:"inactiveFamilies"`
	TotalMembers      int             `json:"totalMembers"`
	TotalChildren     int             `json:"totalChildren"`
	ChildAges         []Bucket        `json:"childAges"`
	GuardianAges      []Bucket        `json:"guardianAges"`
	ChildrenPerFamily []Bucket        `json:"childrenPerFamily"`
	RecentActivity    []ActivityEntry `json:"recentActivity"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

type ageRange struct {
	label    string
	min, max int
}

var childAgeRanges = []ageRange{
	{"0-3", 0, 3},
	{"4-6", 4, 6},
	{"7-12", 7, 12},
	{"13-16", 13, 16},
	{"17-18", 17, 18},
	{"18+", 19, 1 << 30},
}

var guardianAgeRanges = []ageRange{
	{"20-29", 20, 29},
	{"30-39", 30, 39},
	{"40-49", 40, 49},
	{"50-59", 50, 59},
	{"60+", 60, 1 << 30},
}

// ReportService computes dashboard statistics
type ReportService struct {
	familyRepo *repository.FamilyRepository
}

// NewReportService creates a new report service
func NewReportService(familyRepo *repository.FamilyRepository) *ReportService {
	return &ReportService{familyRepo: familyRepo}
}

// Dashboard loads every family and summarises it as of now
func (s *ReportService) Dashboard(ctx context.Context, actor *models.User, now time.Time) (*Dashboard, error) {
	if _, err := RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	families, err := s.familyRepo.ListFamilies(ctx)
	if err != nil {
		return nil, storageFault("list families", err)
	}
	return BuildDashboard(families, now), nil
}

// BuildDashboard aggregates families. Ages are whole years between the
// birth year and the current year; members without a usable birth date are
// left out of the age charts.
func BuildDashboard(families []models.Family, now time.Time) *Dashboard {
	d := &Dashboard{
		TotalFamilies:  len(families),
		ChildAges:      emptyBuckets(childAgeRanges),
		GuardianAges:   emptyBuckets(guardianAgeRanges),
		RecentActivity: []ActivityEntry{},
		GeneratedAt:    now,
	}

	perFamily := make(map[int]int)
	for i := range families {
		f := &families[i]
		if f.Status == models.FamilyInactive {
			d.InactiveFamilies++
		} else {
			d.ActiveFamilies++
		}
		d.TotalMembers += len(f.Members)

		children := f.CountRole(models.MemberChild)
		d.TotalChildren += children
		perFamily[children]++

		for _, m := range f.Members {
			birth, err := time.Parse(validation.DateLayout, m.BirthDate)
			if err != nil {
				continue
			}
			age := now.Year() - birth.Year()
			switch {
			case m.Role == models.MemberChild:
				countAge(d.ChildAges, childAgeRanges, age)
			case m.Role.IsGuardian():
				countAge(d.GuardianAges, guardianAgeRanges, age)
			}
		}
	}

	counts := make([]int, 0, len(perFamily))
	for n := range perFamily {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	d.ChildrenPerFamily = make([]Bucket, 0, len(counts))
	for _, n := range counts {
		d.ChildrenPerFamily = append(d.ChildrenPerFamily, Bucket{Label: childrenLabel(n), Count: perFamily[n]})
	}

	d.RecentActivity = recentActivity(families, now)
	return d
}

func emptyBuckets(ranges []ageRange) []Bucket {
	buckets := make([]Bucket, len(ranges))
	for i, r := range ranges {
		buckets[i].Label = r.label
	}
	return buckets
}

func countAge(buckets []Bucket, ranges []ageRange, age int) {
	for i, r := range ranges {
		if age >= r.min && age <= r.max {
			buckets[i].Count++
			return
		}
	}
}

func childrenLabel(n int) string {
	if n == 1 {
		return "1 child"
	}
	return strconv.Itoa(n) + " children"
}

func recentActivity(families []models.Family, now time.Time) []ActivityEntry {
	since := now.Add(-recentActivityWindow)
	entries := []ActivityEntry{}
	for _, f := range families {
		touched := (f.CreatedAt != nil && f.CreatedAt.After(since)) ||
			(f.UpdatedAt != nil && f.UpdatedAt.After(since))
		if !touched {
			continue
		}
		entries = append(entries, ActivityEntry{
			FamilyID:         f.ID,
			MembershipNumber: f.MembershipNumber,
			Name:             f.Name,
			CreatedBy:        f.CreatedBy,
			CreatedAt:        f.CreatedAt,
			UpdatedAt:        f.UpdatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return updatedUnix(entries[i]) > updatedUnix(entries[j])
	})
	if len(entries) > recentActivityLimit {
		entries = entries[:recentActivityLimit]
	}
	return entries
}

func updatedUnix(e ActivityEntry) int64 {
	if e.UpdatedAt == nil {
		return 0
	}
	return e.UpdatedAt.UnixNano()
}
