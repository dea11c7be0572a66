package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/validation"
)

// CardClaims are carried by a membership card's verification token
type CardClaims struct {
	FamilyID         int64  `json:"fid"`
	MembershipNumber string `json:"mno"`
	jwt.RegisteredClaims
}

// Card is the printable membership card of a family
type Card struct {
	FamilyID         int64           `json:"familyId"`
	MembershipNumber string          `json:"membershipNumber"`
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	Status           string          `json:"status"`
	JoinDate         string          `json:"joinDate"`
	Guardians        []models.Member `json:"guardians"`
	Children         []models.Member `json:"children"`
	IssuedAt         time.Time       `json:"issuedAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	Token            string          `json:"token"`
	VerifyURL        string          `json:"verifyUrl"`
}

// CardVerification is the public answer to a scanned card
type CardVerification struct {
	Valid            bool   `json:"valid"`
	MembershipNumber string `json:"membershipNumber,omitempty"`
	Name             string `json:"name,omitempty"`
	Status           string `json:"status,omitempty"`
}

// CardMailer delivers membership cards by email
type CardMailer interface {
	IsEnabled() bool
	SendMembershipCard(ctx context.Context, toEmail string, card *Card) error
}

// CardService issues and verifies membership cards
type CardService struct {
	familyRepo *repository.FamilyRepository
	mailer     CardMailer
	secret     []byte
	ttl        time.Duration
	baseURL    string
	now        func() time.Time
}

// NewCardService creates a new card service. Without a signing secret a
// random one is generated, so cards stop verifying after a restart.
func NewCardService(familyRepo *repository.FamilyRepository, mailer CardMailer, secret string, ttl time.Duration, baseURL string) *CardService {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("failed to generate card signing key: %v", err))
		}
		log.Println("CARD_SIGNING_SECRET not set: using an ephemeral key, issued cards will not verify after a restart")
	}

	return &CardService{
		familyRepo: familyRepo,
		mailer:     mailer,
		secret:     key,
		ttl:        ttl,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// Card builds the membership card of a family
func (s *CardService) Card(ctx context.Context, actor *models.User, id int64) (*Card, error) {
	if _, err := RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	card, _, err := s.buildCard(ctx, id)
	return card, err
}

func (s *CardService) buildCard(ctx context.Context, id int64) (*Card, *models.Family, error) {
	family, err := s.familyRepo.GetFamilyByID(ctx, id)
	if err != nil {
		return nil, nil, storageFault("get family", err)
	}
	if family == nil {
		return nil, nil, ErrNotFound
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	card := &Card{
		FamilyID:         family.ID,
		MembershipNumber: family.MembershipNumber,
		Name:             family.Name,
		Address:          family.Address,
		Status:           string(family.Status),
		JoinDate:         family.JoinDate,
		Guardians:        []models.Member{},
		Children:         []models.Member{},
		IssuedAt:         issuedAt,
		ExpiresAt:        issuedAt.Add(s.ttl),
	}
	for _, m := range family.Members {
		if m.Role == models.MemberChild {
			card.Children = append(card.Children, m)
		} else {
			card.Guardians = append(card.Guardians, m)
		}
	}

	card.Token, err = s.sign(family, issuedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign card: %w", err)
	}
	card.VerifyURL = s.baseURL + "/cards/verify?token=" + url.QueryEscape(card.Token)
	return card, family, nil
}

func (s *CardService) sign(family *models.Family, issuedAt time.Time) (string, error) {
	claims := CardClaims{
		FamilyID:         family.ID,
		MembershipNumber: family.MembershipNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(family.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks a card token. Forged, expired and stale cards are reported
// as invalid rather than as errors.
func (s *CardService) Verify(ctx context.Context, tokenString string) (*CardVerification, error) {
	claims := &CardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return &CardVerification{Valid: false}, nil
	}

	family, err := s.familyRepo.GetFamilyByID(ctx, claims.FamilyID)
	if err != nil {
		return nil, storageFault("get family", err)
	}
	if family == nil || family.MembershipNumber != claims.MembershipNumber {
		return &CardVerification{Valid: false}, nil
	}

	return &CardVerification{
		Valid:            true,
		MembershipNumber: family.MembershipNumber,
		Name:             family.Name,
		Status:           string(family.Status),
	}, nil
}

// EmailCard sends the card to the family's address. It reports false when
// email delivery is switched off.
func (s *CardService) EmailCard(ctx context.Context, actor *models.User, id int64) (bool, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return false, err
	}

	card, family, err := s.buildCard(ctx, id)
	if err != nil {
		return false, err
	}
	if err := validation.ValidateEmail(family.Email); err != nil {
		return false, err
	}

	if s.mailer == nil || !s.mailer.IsEnabled() {
		log.Printf("Skipping card email for family %d: email service disabled", id)
		return false, nil
	}
	if err := s.mailer.SendMembershipCard(ctx, family.Email, card); err != nil {
		return false, fmt.Errorf("failed to email card: %w", err)
	}
	return true, nil
}
