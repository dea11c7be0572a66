package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"ampa/internal/database"
	"ampa/internal/models"
)

// FamilyRepository handles database operations for families and their members
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

const familyColumns = `id, COALESCE(membership_number, ''), name, address, phone, email, join_date, status,
	COALESCE(ai_summary, ''), COALESCE(created_by, ''), created_at, updated_at`

const memberColumns = `id, family_id, first_name, last_name, birth_date, role, gender, notes, email, phone`

func scanFamily(row interface{ Scan(...interface{}) error }) (*models.Family, error) {
	family := &models.Family{Members: []models.Member{}}
	var status string
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&family.ID,
		&family.MembershipNumber,
		&family.Name,
		&family.Address,
		&family.Phone,
		&family.Email,
		&family.JoinDate,
		&status,
		&family.AISummary,
		&family.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	family.Status = models.FamilyStatus(status)
	family.CreatedAt = &createdAt
	family.UpdatedAt = &updatedAt
	return family, nil
}

func scanMember(row interface{ Scan(...interface{}) error }) (models.Member, error) {
	var m models.Member
	var role string
	err := row.Scan(
		&m.ID,
		&m.FamilyID,
		&m.FirstName,
		&m.LastName,
		&m.BirthDate,
		&role,
		&m.Gender,
		&m.Notes,
		&m.Email,
		&m.Phone,
	)
	m.Role = models.MemberRole(role)
	return m, err
}

// nullable maps an empty string to SQL NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ListFamilies returns every family ordered by id, members attached in id order
func (r *FamilyRepository) ListFamilies(ctx context.Context) ([]models.Family, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+familyColumns+` FROM families ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	families := []models.Family{}
	index := make(map[int64]int)
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		index[family.ID] = len(families)
		families = append(families, *family)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}
	rows.Close()

	memberRows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY family_id ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		m, err := scanMember(memberRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if i, ok := index[m.FamilyID]; ok {
			families[i].Members = append(families[i].Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return families, nil
}

// GetFamilyByID retrieves a family with its members
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, id int64) (*models.Family, error) {
	return getFamily(ctx, r.db, id)
}

func getFamily(ctx context.Context, q database.DBTX, id int64) (*models.Family, error) {
	family, err := scanFamily(q.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+memberColumns+` FROM members WHERE family_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		family.Members = append(family.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return family, nil
}

// lockFamily takes a row lock on the family where the dialect supports one
func lockFamily(ctx context.Context, tx *database.Tx, id int64) (bool, error) {
	query := `SELECT id FROM families WHERE id = ?` + tx.GetDialect().LockForUpdate()
	var found int64
	err := tx.QueryRowContext(ctx, query, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock family: %w", err)
	}
	return true, nil
}

func insertMembers(ctx context.Context, q database.DBTX, familyID int64, members []models.Member, keepIDs bool) error {
	for _, m := range members {
		var err error
		if keepIDs && m.ID > 0 {
			_, err = q.ExecContext(ctx,
				`INSERT INTO members (id, family_id, first_name, last_name, birth_date, role, gender, notes, email, phone)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, familyID, m.FirstName, m.LastName, m.BirthDate, string(m.Role), m.Gender, m.Notes, m.Email, m.Phone)
		} else {
			_, err = q.ExecReturningID(ctx,
				`INSERT INTO members (family_id, first_name, last_name, birth_date, role, gender, notes, email, phone)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				familyID, m.FirstName, m.LastName, m.BirthDate, string(m.Role), m.Gender, m.Notes, m.Email, m.Phone)
		}
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}

// insertNumberedFamily runs the two-step create: insert without a membership
// number, then number the row after its generated id.
func insertNumberedFamily(ctx context.Context, q database.DBTX, f *models.Family, createdAt time.Time) (int64, error) {
	return insertNumberedFamilySkipping(ctx, q, f, createdAt, nil)
}

// insertNumberedFamilySkipping is insertNumberedFamily for imports: a
// generated id whose string form is already held as a membership number is
// discarded and the next one drawn.
func insertNumberedFamilySkipping(ctx context.Context, q database.DBTX, f *models.Family, createdAt time.Time, taken map[string]bool) (int64, error) {
	for {
		id, err := q.ExecReturningID(ctx,
			`INSERT INTO families (membership_number, name, address, phone, email, join_date, status, ai_summary, created_by, created_at, updated_at)
			VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Name, f.Address, f.Phone, f.Email, f.JoinDate, string(f.Status), nullable(f.AISummary), nullable(f.CreatedBy), createdAt, createdAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert family: %w", err)
		}

		number := strconv.FormatInt(id, 10)
		if taken[number] {
			if _, err := q.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id); err != nil {
				return 0, fmt.Errorf("failed to skip family id %d: %w", id, err)
			}
			continue
		}

		if _, err := q.ExecContext(ctx, `UPDATE families SET membership_number = ? WHERE id = ?`, number, id); err != nil {
			if database.IsUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, fmt.Errorf("failed to assign membership number: %w", err)
		}
		return id, nil
	}
}

// CreateFamily inserts a family and its members in one transaction and
// returns the stored aggregate.
func (r *FamilyRepository) CreateFamily(ctx context.Context, f *models.Family) (*models.Family, error) {
	var created *models.Family
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		id, err := insertNumberedFamily(ctx, tx, f, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := insertMembers(ctx, tx, id, f.Members, false); err != nil {
			return err
		}
		created, err = getFamily(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateFamily replaces every scalar field and the whole member list of a
// family. The stored membership number is never touched. Returns nil when
// the family does not exist.
func (r *FamilyRepository) UpdateFamily(ctx context.Context, id int64, f *models.Family) (*models.Family, error) {
	var updated *models.Family
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		found, err := lockFamily(ctx, tx, id)
		if err != nil || !found {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE family_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete members: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE families
			SET name = ?, address = ?, phone = ?, email = ?, join_date = ?, status = ?, ai_summary = ?, updated_at = ?
			WHERE id = ?`,
			f.Name, f.Address, f.Phone, f.Email, f.JoinDate, string(f.Status), nullable(f.AISummary), time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update family: %w", err)
		}

		if err := insertMembers(ctx, tx, id, f.Members, false); err != nil {
			return err
		}

		updated, err = getFamily(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFamily removes the members of a family and then the family itself.
// Returns false when the family does not exist.
func (r *FamilyRepository) DeleteFamily(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		found, err := lockFamily(ctx, tx, id)
		if err != nil || !found {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE family_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete members: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete family: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// UpdateAISummary stores a generated summary. Returns false when the family
// does not exist.
func (r *FamilyRepository) UpdateAISummary(ctx context.Context, id int64, summary string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE families SET ai_summary = ?, updated_at = ? WHERE id = ?`,
		nullable(summary), time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result: %w", err)
	}
	return affected > 0, nil
}

// ReplaceAll wipes every member and family and loads the given families in
// one transaction. Rows with an id keep it, as do their membership number
// and audit fields. Rows without an id are numbered like a normal create,
// skipping ids that would clash with a kept membership number, and their
// members always get fresh ids.
func (r *FamilyRepository) ReplaceAll(ctx context.Context, families []models.Family) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM families`); err != nil {
			return fmt.Errorf("failed to clear families: %w", err)
		}

		now := time.Now().UTC()
		ids := make([]int64, len(families))
		taken := make(map[string]bool)

		// Explicit ids go in first so the sequences can be realigned
		// before anything asks them for a fresh value.
		for i := range families {
			f := &families[i]
			if f.ID <= 0 {
				continue
			}
			if err := insertFamilyWithID(ctx, tx, f, now); err != nil {
				return err
			}
			ids[i] = f.ID
			taken[storedNumber(f)] = true
			if err := insertMembers(ctx, tx, f.ID, explicitMembers(f.Members, true), true); err != nil {
				return err
			}
		}

		if err := resetSequences(ctx, tx); err != nil {
			return err
		}

		for i := range families {
			f := &families[i]
			if f.ID <= 0 {
				createdAt := now
				if f.CreatedAt != nil {
					createdAt = f.CreatedAt.UTC()
				}
				id, err := insertNumberedFamilySkipping(ctx, tx, f, createdAt, taken)
				if err != nil {
					return err
				}
				ids[i] = id
				if err := insertMembers(ctx, tx, id, f.Members, false); err != nil {
					return err
				}
				continue
			}
			if err := insertMembers(ctx, tx, ids[i], explicitMembers(f.Members, false), false); err != nil {
				return err
			}
		}
		return nil
	})
}

// explicitMembers filters members by whether they carry an id
func explicitMembers(members []models.Member, withID bool) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if (m.ID > 0) == withID {
			out = append(out, m)
		}
	}
	return out
}

// storedNumber is the membership number an imported family with an id is
// stored under
func storedNumber(f *models.Family) string {
	if f.MembershipNumber == "" {
		return strconv.FormatInt(f.ID, 10)
	}
	return f.MembershipNumber
}

func insertFamilyWithID(ctx context.Context, q database.DBTX, f *models.Family, now time.Time) error {
	membershipNumber := storedNumber(f)
	createdAt, updatedAt := now, now
	if f.CreatedAt != nil {
		createdAt = f.CreatedAt.UTC()
	}
	if f.UpdatedAt != nil {
		updatedAt = f.UpdatedAt.UTC()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO families (id, membership_number, name, address, phone, email, join_date, status, ai_summary, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, membershipNumber, f.Name, f.Address, f.Phone, f.Email, f.JoinDate, string(f.Status),
		nullable(f.AISummary), nullable(f.CreatedBy), createdAt, updatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert family %d: %w", f.ID, err)
	}
	return nil
}

func resetSequences(ctx context.Context, tx *database.Tx) error {
	for _, table := range []string{"families", "members"} {
		query := tx.GetDialect().ResetSequenceQuery(table)
		if query == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}
	return nil
}
