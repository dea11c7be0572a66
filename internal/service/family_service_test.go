package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"ampa/internal/models"
	"ampa/internal/validation"
)

func smithInput() models.Family {
	return models.Family{
		Name:    "Smith",
		Address: "1 Main St",
		Members: []models.Member{
			{FirstName: "Jo", LastName: "Smith", Role: models.MemberChild, BirthDate: "2015-04-01"},
		},
	}
}

func TestCreateFamilyAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	admin := env.createUser(t, "admin", models.RoleAdmin)

	family, err := svc.Create(context.Background(), admin, smithInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if family.ID == 0 {
		t.Fatal("created family has no id")
	}
	if family.MembershipNumber != strconv.FormatInt(family.ID, 10) {
		t.Errorf("membershipNumber = %q, want %q", family.MembershipNumber, strconv.FormatInt(family.ID, 10))
	}
	if len(family.Members) != 1 || family.Members[0].FirstName != "Jo" {
		t.Errorf("members = %+v", family.Members)
	}
	if family.Status != models.FamilyActive {
		t.Errorf("status = %q, want ACTIVE default", family.Status)
	}
	if family.CreatedBy != "admin" {
		t.Errorf("createdBy = %q, want admin", family.CreatedBy)
	}
}

func TestCreateFamilyIgnoresClientNumbering(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	admin := env.createUser(t, "admin", models.RoleAdmin)

	input := smithInput()
	input.ID = 777
	input.MembershipNumber = "VIP-1"

	family, err := svc.Create(context.Background(), admin, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if family.ID == 777 || family.MembershipNumber != strconv.FormatInt(family.ID, 10) {
		t.Errorf("client numbering leaked: id %d number %q", family.ID, family.MembershipNumber)
	}
}

func TestCreateFamilyRejectsUserRole(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	user := env.createUser(t, "viewer", models.RoleUser)

	_, err := svc.Create(context.Background(), user, smithInput())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Create() error = %v, want ErrUnauthorized", err)
	}
	if n := env.count(t, "families"); n != 0 {
		t.Errorf("%d families inserted by a USER", n)
	}

	_, err = svc.Create(context.Background(), nil, smithInput())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Create(nil actor) error = %v, want ErrUnauthorized", err)
	}
}

func TestCreateFamilyRejectsMalformedMembers(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	admin := env.createUser(t, "admin", models.RoleAdmin)

	input := smithInput()
	input.Members = append(input.Members, models.Member{FirstName: "NoLastName", Role: models.MemberChild})

	_, err := svc.Create(context.Background(), admin, input)
	var ve validation.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Create() error = %v, want ValidationError", err)
	}
	if ve.Field != "members[1].lastName" {
		t.Errorf("field = %q", ve.Field)
	}
	if n := env.count(t, "families"); n != 0 {
		t.Errorf("%d families inserted despite invalid members", n)
	}
}

func TestUpdateFamilyMembersMatchInput(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)

	created, err := svc.Create(ctx, admin, smithInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	inputs := [][]models.Member{
		{},
		{
			{FirstName: "Ana", LastName: "Smith", Role: models.MemberMother, Email: "ana@example.com"},
			{FirstName: "Jo", LastName: "Smith", Role: models.MemberChild, BirthDate: "2015-04-01"},
		},
		{
			{FirstName: "Max", LastName: "Smith", Role: models.MemberChild, Gender: "M"},
		},
	}

	for i, members := range inputs {
		input := created
		input.Members = members
		updated, err := svc.Update(ctx, admin, created.ID, *input)
		if err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
		if len(updated.Members) != len(members) {
			t.Fatalf("Update() #%d stored %d members, want %d", i, len(updated.Members), len(members))
		}
		for j, m := range updated.Members {
			want := members[j]
			if m.FirstName != want.FirstName || m.LastName != want.LastName || m.Role != want.Role ||
				m.BirthDate != want.BirthDate || m.Email != want.Email || m.Gender != want.Gender {
				t.Errorf("Update() #%d member %d = %+v, want %+v", i, j, m, want)
			}
		}
		if updated.MembershipNumber != created.MembershipNumber {
			t.Errorf("membership number changed on update")
		}
	}
}

func TestUpdateAndDeleteMissingFamily(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)

	if _, err := svc.Update(ctx, admin, 42, smithInput()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, admin, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, admin, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteFamilyRemovesMembers(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)
	viewer := env.createUser(t, "viewer", models.RoleUser)

	created, err := svc.Create(ctx, admin, smithInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, viewer, created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Delete() as USER error = %v, want ErrUnauthorized", err)
	}
	if n := env.count(t, "members"); n != 1 {
		t.Fatalf("rejected delete touched members: %d left", n)
	}

	if err := svc.Delete(ctx, admin, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := env.count(t, "members"); n != 0 {
		t.Errorf("%d orphaned members", n)
	}
}

func TestListFamiliesRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)
	viewer := env.createUser(t, "viewer", models.RoleUser)

	if _, err := svc.List(ctx, nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("List(nil) error = %v, want ErrUnauthorized", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, admin, smithInput()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	families, err := svc.List(ctx, viewer)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(families) != 2 || families[0].ID >= families[1].ID {
		t.Errorf("List() = %+v", families)
	}
}

func TestConcurrentCreatesNeverShareANumber(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFamilyService(env.families)
	ctx := context.Background()
	admin := env.createUser(t, "admin", models.RoleAdmin)

	const n = 25
	var wg sync.WaitGroup
	created := make([]*models.Family, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i], errs[i] = svc.Create(ctx, admin, smithInput())
		}(i)
	}
	wg.Wait()

	numbers := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Create() #%d error = %v", i, errs[i])
		}
		f := created[i]
		if f.MembershipNumber != strconv.FormatInt(f.ID, 10) {
			t.Errorf("family %d numbered %q", f.ID, f.MembershipNumber)
		}
		if numbers[f.MembershipNumber] {
			t.Errorf("membership number %q issued twice", f.MembershipNumber)
		}
		numbers[f.MembershipNumber] = true
	}
	if got := env.count(t, "families"); got != n {
		t.Errorf("%d families stored, want %d", got, n)
	}
}
