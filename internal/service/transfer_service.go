package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/validation"
)

// Import/export file formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const utf8BOM = "\ufeff"

// ExportRow is one (family, member) pairing of the flat export. A family
// without members produces a single row with empty member fields.
type ExportRow struct {
	FamilyID         int64
	MembershipNumber string
	FamilyName       string
	Address          string
	Phone            string
	Email            string
	Status           string
	JoinDate         string
	MemberID         int64
	FirstName        string
	LastName         string
	Role             string
	BirthDate        string
	Gender           string
	MemberEmail      string
	MemberPhone      string
	Notes            string
	AISummary        string
	CreatedBy        string
	CreatedAt        string
	UpdatedAt        string
}

type column int

const (
	colFamilyID column = iota
	colMembershipNumber
	colFamilyName
	colAddress
	colPhone
	colEmail
	colStatus
	colJoinDate
	colMemberID
	colFirstName
	colLastName
	colRole
	colBirthDate
	colGender
	colMemberEmail
	colMemberPhone
	colNotes
	colAISummary
	colCreatedBy
	colCreatedAt
	colUpdatedAt
	numColumns
)

// exportHeaders keeps the association's spreadsheet headings
var exportHeaders = [numColumns]string{
	"IdFamilia", "NumeroSocio", "NombreFamilia", "Direccion", "TelefonoFamilia",
	"EmailFamilia", "Estado", "FechaAlta",
	"IdMiembro", "NombreMiembro", "ApellidosMiembro", "Rol", "FechaNacimiento",
	"Genero", "EmailMiembro", "TelefonoMiembro", "NotasMiembro",
	"ResumenIA", "CreadoPor", "FechaCreacion", "FechaActualizacion",
}

// headerAliases maps normalised header names to columns
var headerAliases = map[string]column{
	"idfamilia": colFamilyID, "familyid": colFamilyID, "id": colFamilyID,
	"numerosocio": colMembershipNumber, "nsocio": colMembershipNumber, "membershipnumber": colMembershipNumber,
	"nombrefamilia": colFamilyName, "familia": colFamilyName, "familyname": colFamilyName, "name": colFamilyName,
	"direccion": colAddress, "address": colAddress,
	"telefonofamilia": colPhone, "telefono": colPhone, "phone": colPhone,
	"emailfamilia": colEmail, "email": colEmail,
	"estado": colStatus, "status": colStatus,
	"fechaalta": colJoinDate, "joindate": colJoinDate,
	"idmiembro": colMemberID, "memberid": colMemberID,
	"nombremiembro": colFirstName, "nombre": colFirstName, "firstname": colFirstName,
	"apellidosmiembro": colLastName, "apellidos": colLastName, "lastname": colLastName,
	"rol": colRole, "role": colRole,
	"fechanacimiento": colBirthDate, "birthdate": colBirthDate,
	"genero": colGender, "sexo": colGender, "gender": colGender,
	"emailmiembro": colMemberEmail, "memberemail": colMemberEmail,
	"telefonomiembro": colMemberPhone, "memberphone": colMemberPhone,
	"notasmiembro": colNotes, "notas": colNotes, "notes": colNotes,
	"resumenia": colAISummary, "aisummary": colAISummary,
	"creadopor": colCreatedBy, "createdby": colCreatedBy,
	"fechacreacion": colCreatedAt, "createdat": colCreatedAt,
	"fechaactualizacion": colUpdatedAt, "updatedat": colUpdatedAt,
}

var headerReplacer = strings.NewReplacer(
	" ", "", "_", "", "-", "", ".", "", "º", "", "°", "",
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
)

func normaliseHeader(h string) string {
	return headerReplacer.Replace(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))))
}

func (r ExportRow) values() []string {
	memberID := ""
	if r.MemberID > 0 {
		memberID = strconv.FormatInt(r.MemberID, 10)
	}
	return []string{
		strconv.FormatInt(r.FamilyID, 10), r.MembershipNumber, r.FamilyName, r.Address, r.Phone,
		r.Email, r.Status, r.JoinDate,
		memberID, r.FirstName, r.LastName, r.Role, r.BirthDate,
		r.Gender, r.MemberEmail, r.MemberPhone, r.Notes,
		r.AISummary, r.CreatedBy, r.CreatedAt, r.UpdatedAt,
	}
}

// TransferService moves the whole family/member graph to and from flat files
type TransferService struct {
	familyRepo *repository.FamilyRepository
}

// NewTransferService creates a new transfer service
func NewTransferService(familyRepo *repository.FamilyRepository) *TransferService {
	return &TransferService{familyRepo: familyRepo}
}

// ExportAll flattens every family into export rows
func (s *TransferService) ExportAll(ctx context.Context, actor *models.User) ([]ExportRow, error) {
	if _, err := RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	families, err := s.familyRepo.ListFamilies(ctx)
	if err != nil {
		return nil, storageFault("list families", err)
	}
	return FlattenFamilies(families), nil
}

// FlattenFamilies produces one row per member, or one bare row for a family
// with no members.
func FlattenFamilies(families []models.Family) []ExportRow {
	rows := make([]ExportRow, 0, len(families))
	for _, f := range families {
		base := ExportRow{
			FamilyID:         f.ID,
			MembershipNumber: f.MembershipNumber,
			FamilyName:       f.Name,
			Address:          f.Address,
			Phone:            f.Phone,
			Email:            f.Email,
			Status:           string(f.Status),
			JoinDate:         f.JoinDate,
			AISummary:        f.AISummary,
			CreatedBy:        f.CreatedBy,
			CreatedAt:        formatTimestamp(f.CreatedAt),
			UpdatedAt:        formatTimestamp(f.UpdatedAt),
		}
		if len(f.Members) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, m := range f.Members {
			row := base
			row.MemberID = m.ID
			row.FirstName = m.FirstName
			row.LastName = m.LastName
			row.Role = string(m.Role)
			row.BirthDate = m.BirthDate
			row.Gender = m.Gender
			row.MemberEmail = m.Email
			row.MemberPhone = m.Phone
			row.Notes = m.Notes
			rows = append(rows, row)
		}
	}
	return rows
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp reads a timestamp column; unreadable values are dropped
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// WriteCSV writes rows as a semicolon separated file with a UTF-8 BOM so
// spreadsheet programs pick the right encoding.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeaders[:]); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single-sheet workbook
func WriteXLSX(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Familias"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	writeRow := func(index int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, index)
		if err != nil {
			return err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := writeRow(1, exportHeaders[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row.values()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	return f.Write(w)
}

// ParsePreview turns an uploaded file back into families for review. Nothing
// is stored and no identity is required.
func ParsePreview(r io.Reader, format string) ([]models.Family, error) {
	var records [][]string
	var err error

	switch strings.ToLower(format) {
	case FormatCSV, "":
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		return nil, validation.ValidationError{Field: "format", Message: "format must be csv or xlsx"}
	}
	if err != nil {
		return nil, err
	}

	return groupRecords(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = ';'
	if bytes.Count(firstLine, []byte(",")) > bytes.Count(firstLine, []byte(";")) {
		cr.Comma = ','
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, validation.ValidationError{Field: "file", Message: "unreadable CSV: " + err.Error()}
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, validation.ValidationError{Field: "file", Message: "unreadable workbook"}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, validation.ValidationError{Field: "file", Message: "unreadable sheet"}
	}
	return rows, nil
}

// groupRecords rebuilds families from a header row and data rows. Rows are
// grouped by family id; rows without one are grouped by membership number,
// or by name and address, and get ids above every id in the file.
func groupRecords(records [][]string) ([]models.Family, error) {
	families := []models.Family{}
	if len(records) == 0 {
		return families, nil
	}

	index := make(map[column]int)
	for i, h := range records[0] {
		if col, ok := headerAliases[normaliseHeader(h)]; ok {
			if _, seen := index[col]; !seen {
				index[col] = i
			}
		}
	}
	if _, ok := index[colFamilyName]; !ok {
		return nil, validation.ValidationError{Field: "file", Message: "missing family name column"}
	}

	cell := func(row []string, col column) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	byKey := make(map[string]int)
	var unnumbered []int
	var maxID int64

	for _, row := range records[1:] {
		if isBlank(row) {
			continue
		}

		key := ""
		id, err := strconv.ParseInt(cell(row, colFamilyID), 10, 64)
		if err != nil || id <= 0 {
			id = 0
			if number := cell(row, colMembershipNumber); number != "" {
				key = "number:" + number
			} else {
				key = "name:" + strings.ToLower(cell(row, colFamilyName)) + "|" + strings.ToLower(cell(row, colAddress))
			}
		} else {
			key = "id:" + strconv.FormatInt(id, 10)
			if id > maxID {
				maxID = id
			}
		}

		pos, ok := byKey[key]
		if !ok {
			pos = len(families)
			byKey[key] = pos
			families = append(families, familyFromRow(id, row, cell))
			if id == 0 {
				unnumbered = append(unnumbered, pos)
			}
		}

		if m, ok := memberFromRow(row, cell); ok {
			families[pos].Members = append(families[pos].Members, m)
		}
	}

	for _, pos := range unnumbered {
		maxID++
		families[pos].ID = maxID
	}
	for i := range families {
		f := &families[i]
		if f.MembershipNumber == "" {
			f.MembershipNumber = strconv.FormatInt(f.ID, 10)
		}
		for j := range f.Members {
			f.Members[j].FamilyID = f.ID
		}
	}

	return families, nil
}

func familyFromRow(id int64, row []string, cell func([]string, column) string) models.Family {
	status := models.FamilyStatus(strings.ToUpper(cell(row, colStatus)))
	if parsed, ok := models.ParseFamilyStatus(string(status)); ok {
		status = parsed
	} else if status == "" {
		status = models.FamilyActive
	}

	return models.Family{
		ID:               id,
		MembershipNumber: cell(row, colMembershipNumber),
		Name:             cell(row, colFamilyName),
		Address:          cell(row, colAddress),
		Phone:            cell(row, colPhone),
		Email:            cell(row, colEmail),
		Status:           status,
		JoinDate:         cell(row, colJoinDate),
		AISummary:        cell(row, colAISummary),
		CreatedBy:        cell(row, colCreatedBy),
		CreatedAt:        parseTimestamp(cell(row, colCreatedAt)),
		UpdatedAt:        parseTimestamp(cell(row, colUpdatedAt)),
		Members:          []models.Member{},
	}
}

func memberFromRow(row []string, cell func([]string, column) string) (models.Member, bool) {
	m := models.Member{
		FirstName: cell(row, colFirstName),
		LastName:  cell(row, colLastName),
		BirthDate: cell(row, colBirthDate),
		Role:      models.MemberRole(strings.ToUpper(cell(row, colRole))),
		Gender:    cell(row, colGender),
		Email:     cell(row, colMemberEmail),
		Phone:     cell(row, colMemberPhone),
		Notes:     cell(row, colNotes),
	}
	rawID := cell(row, colMemberID)
	if m.FirstName == "" && m.LastName == "" && rawID == "" {
		return m, false
	}
	if id, err := strconv.ParseInt(rawID, 10, 64); err == nil && id > 0 {
		m.ID = id
	}
	if role, ok := models.ParseMemberRole(string(m.Role)); ok {
		m.Role = role
	}
	return m, true
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CommitImport replaces every family and member with the given collection.
// All input is validated before anything is deleted.
func (s *TransferService) CommitImport(ctx context.Context, actor *models.User, families []models.Family) error {
	if _, err := RequireAdmin(actor); err != nil {
		return err
	}

	if err := validateImport(families); err != nil {
		return err
	}
	for i := range families {
		if families[i].CreatedBy == "" {
			families[i].CreatedBy = fmt.Sprintf("import (%s)", actor.Username)
		}
	}

	if err := s.familyRepo.ReplaceAll(ctx, families); err != nil {
		if isDuplicate(err) {
			return conflict("imported rows collide on id or membership number")
		}
		return storageFault("replace families", err)
	}

	log.Printf("Import by %q replaced the registry with %d families", actor.Username, len(families))
	return nil
}

func validateImport(families []models.Family) error {
	familyIDs := make(map[int64]bool)
	memberIDs := make(map[int64]bool)
	numbers := make(map[string]bool)

	for i := range families {
		f := &families[i]
		prefix := fmt.Sprintf("families[%d]", i)

		if err := validation.ValidateFamily(f); err != nil {
			var ve validation.ValidationError
			if errors.As(err, &ve) {
				ve.Field = prefix + "." + ve.Field
				return ve
			}
			return err
		}

		if f.ID < 0 {
			return validation.ValidationError{Field: prefix + ".id", Message: "id must be positive"}
		}
		if f.ID > 0 {
			if familyIDs[f.ID] {
				return validation.ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate family id %d", f.ID)}
			}
			familyIDs[f.ID] = true
		}

		if f.MembershipNumber != "" {
			if numbers[f.MembershipNumber] {
				return validation.ValidationError{Field: prefix + ".membershipNumber", Message: fmt.Sprintf("duplicate membership number %q", f.MembershipNumber)}
			}
			numbers[f.MembershipNumber] = true
		}

		for j, m := range f.Members {
			if m.ID < 0 {
				return validation.ValidationError{Field: fmt.Sprintf("%s.members[%d].id", prefix, j), Message: "id must be positive"}
			}
			if m.ID > 0 {
				if memberIDs[m.ID] {
					return validation.ValidationError{Field: fmt.Sprintf("%s.members[%d].id", prefix, j), Message: fmt.Sprintf("duplicate member id %d", m.ID)}
				}
				memberIDs[m.ID] = true
			}
		}
	}
	return nil
}
