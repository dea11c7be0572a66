package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"ampa/internal/models"
)

func TestNewEmailServiceWithoutSenderIsDisabled(t *testing.T) {
	svc, err := NewEmailService("eu-west-1", "", "AMPA", "https://ampa.example", false)
	if err != nil {
		t.Fatalf("NewEmailService: %v", err)
	}
	if svc.IsEnabled() {
		t.Fatal("service without a sender address should be disabled")
	}

	card := &Card{FamilyID: 1, MembershipNumber: "1", Name: "Smith"}
	if err := svc.SendMembershipCard(context.Background(), "smith@example.com", card); err != nil {
		t.Fatalf("disabled service should skip sending, got %v", err)
	}
}

func TestRenderCardEmail(t *testing.T) {
	card := &Card{
		FamilyID:         4,
		MembershipNumber: "4",
		Name:             "O'Brien <Ruiz>",
		Status:           "ACTIVE",
		JoinDate:         "2024-09-01",
		Children: []models.Member{
			{FirstName: "Ana", LastName: "<b>Ruiz</b>"},
		},
		ExpiresAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		VerifyURL: "https://ampa.example/cards/verify?token=abc",
	}

	htmlBody, textBody := renderCardEmail("AMPA", card)

	if strings.Contains(htmlBody, "<Ruiz>") || strings.Contains(htmlBody, "<b>Ruiz</b>") {
		t.Error("html body contains unescaped user input")
	}
	if !strings.Contains(htmlBody, "&lt;b&gt;Ruiz&lt;/b&gt;") {
		t.Error("html body missing escaped child name")
	}
	if !strings.Contains(htmlBody, "Valid until 2025-09-01") {
		t.Error("html body missing expiry date")
	}

	for _, want := range []string{"Number: 4", "Family: O'Brien <Ruiz>", "- Ana <b>Ruiz</b>", card.VerifyURL} {
		if !strings.Contains(textBody, want) {
			t.Errorf("text body missing %q", want)
		}
	}
}

func TestRenderCardEmailWithoutChildren(t *testing.T) {
	_, textBody := renderCardEmail("AMPA", &Card{MembershipNumber: "9", Name: "Soto"})
	if !strings.Contains(textBody, "Children:\n-\n") {
		t.Errorf("expected placeholder for empty children list, got %q", textBody)
	}
}
