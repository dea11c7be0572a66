package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/validation"
)

// Summarizer produces free text from a prompt
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// GeminiSummarizer calls the Gemini API
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

// NewGeminiSummarizer creates a Gemini client. It returns nil when no API
// key is configured.
func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		log.Println("AI summaries disabled: GEMINI_API_KEY not configured")
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("AI summaries enabled: model=%s", model)
	return &GeminiSummarizer{client: client, model: model}, nil
}

// Summarize sends the prompt and returns the model's text
func (g *GeminiSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// SummaryService enriches families with a generated profile
type SummaryService struct {
	familyRepo *repository.FamilyRepository
	summarizer Summarizer
	timeout    time.Duration
	now        func() time.Time
}

// NewSummaryService creates a new summary service. A nil summarizer leaves
// the feature switched off.
func NewSummaryService(familyRepo *repository.FamilyRepository, summarizer Summarizer) *SummaryService {
	return &SummaryService{
		familyRepo: familyRepo,
		summarizer: summarizer,
		timeout:    30 * time.Second,
		now:        time.Now,
	}
}

// Enabled reports whether summaries can be generated
func (s *SummaryService) Enabled() bool {
	return s.summarizer != nil
}

// Generate writes a new summary for a family. When the provider is off or
// fails, the family is left as it was and ErrSummaryUnavailable is returned.
func (s *SummaryService) Generate(ctx context.Context, actor *models.User, id int64) (*models.Family, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	family, err := s.familyRepo.GetFamilyByID(ctx, id)
	if err != nil {
		return nil, storageFault("get family", err)
	}
	if family == nil {
		return nil, ErrNotFound
	}
	if s.summarizer == nil {
		return nil, ErrSummaryUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.summarizer.Summarize(callCtx, familyPrompt(family, s.now()))
	if err != nil {
		log.Printf("Summary generation failed for family %d: %v", id, err)
		return nil, fmt.Errorf("%w: %v", ErrSummaryUnavailable, err)
	}
	if summary == "" {
		return nil, ErrSummaryUnavailable
	}

	found, err := s.familyRepo.UpdateAISummary(ctx, id, summary)
	if err != nil {
		return nil, storageFault("store summary", err)
	}
	if !found {
		return nil, ErrNotFound
	}

	family, err = s.familyRepo.GetFamilyByID(ctx, id)
	if err != nil {
		return nil, storageFault("get family", err)
	}
	if family == nil {
		return nil, ErrNotFound
	}
	return family, nil
}

func familyPrompt(f *models.Family, now time.Time) string {
	parents := f.CountRole(models.MemberFather) + f.CountRole(models.MemberMother)

	var ages []string
	children := 0
	for _, m := range f.Members {
		if m.Role != models.MemberChild {
			continue
		}
		children++
		if birth, err := time.Parse(validation.DateLayout, m.BirthDate); err == nil {
			ages = append(ages, strconv.Itoa(now.Year()-birth.Year())+" years")
		}
	}

	var b strings.Builder
	b.WriteString("Analyse this family for a parents' association:\n")
	fmt.Fprintf(&b, "- Name: %s\n", f.Name)
	fmt.Fprintf(&b, "- Parents: %d\n", parents)
	fmt.Fprintf(&b, "- Children: %d (approximate ages: %s)\n", children, strings.Join(ages, ", "))
	fmt.Fprintf(&b, "- Location: %s\n\n", f.Address)
	b.WriteString("Write a short, friendly profile of this family (two paragraphs at most) and suggest three ")
	b.WriteString("specific activities the association could offer them based on the children's ages.\n")
	b.WriteString("Format: plain text, professional but warm tone.")
	return b.String()
}
