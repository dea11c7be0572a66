package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ampa/internal/models"
)

type fakeSummarizer struct {
	text   string
	err    error
	prompt string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

func TestGenerateSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)
	family, err := NewFamilyService(env.families).Create(ctx, admin, smithInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	fake := &fakeSummarizer{text: "A lovely family."}
	svc := NewSummaryService(env.families, fake)
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	updated, err := svc.Generate(ctx, admin, family.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if updated.AISummary != "A lovely family." {
		t.Errorf("summary = %q", updated.AISummary)
	}
	if !strings.Contains(fake.prompt, "Smith") || !strings.Contains(fake.prompt, "10 years") {
		t.Errorf("prompt = %q", fake.prompt)
	}
	if len(updated.Members) != 1 {
		t.Errorf("summary touched members: %+v", updated.Members)
	}
}

func TestGenerateSummaryUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)
	family, err := NewFamilyService(env.families).Create(ctx, admin, smithInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name       string
		summarizer Summarizer
	}{
		{"disabled", nil},
		{"provider error", &fakeSummarizer{err: errors.New("quota exceeded")}},
		{"empty answer", &fakeSummarizer{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSummaryService(env.families, tt.summarizer)
			if _, err := svc.Generate(ctx, admin, family.ID); !errors.Is(err, ErrSummaryUnavailable) {
				t.Fatalf("Generate() error = %v, want ErrSummaryUnavailable", err)
			}
			stored, _ := env.families.GetFamilyByID(ctx, family.ID)
			if stored.AISummary != "" {
				t.Errorf("family changed: summary = %q", stored.AISummary)
			}
		})
	}

	svc := NewSummaryService(env.families, &fakeSummarizer{text: "x"})
	if svc.Enabled() != true || NewSummaryService(env.families, nil).Enabled() {
		t.Error("Enabled() does not follow the summarizer")
	}
	if _, err := svc.Generate(ctx, admin, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Generate(missing) error = %v", err)
	}
	viewer := env.createUser(t, "viewer", models.RoleUser)
	if _, err := svc.Generate(ctx, viewer, family.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Generate() as USER error = %v", err)
	}
}
