package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ampa/internal/config"
	"ampa/internal/database"
	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	previewCmd := flag.NewFlagSet("preview", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: families_YYYYMMDD_HHMMSS.<format>)")
	exportFormat := exportCmd.String("format", service.FormatCSV, "File format: csv or xlsx")
	exportAs := exportCmd.String("as", "", "Username the export runs as (required)")

	// Preview flags
	previewInput := previewCmd.String("input", "", "Input file path (required)")
	previewFormat := previewCmd.String("format", "", "File format: csv or xlsx (default: from extension)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importFormat := importCmd.String("format", "", "File format: csv or xlsx (default: from extension)")
	importAs := importCmd.String("as", "", "Username of an ADMIN the import runs as (required)")
	importConfirm := importCmd.Bool("confirm", false, "Skip the confirmation prompt")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		requireFlag(exportCmd, "as", *exportAs)
		db, repos := open()
		defer db.Close()
		handleExport(repos, *exportAs, *exportFormat, *exportOutput)

	case "preview":
		previewCmd.Parse(os.Args[2:])
		requireFlag(previewCmd, "input", *previewInput)
		handlePreview(*previewInput, formatOf(*previewFormat, *previewInput))

	case "import":
		importCmd.Parse(os.Args[2:])
		requireFlag(importCmd, "input", *importInput)
		requireFlag(importCmd, "as", *importAs)
		db, repos := open()
		defer db.Close()
		handleImport(repos, *importAs, *importInput, formatOf(*importFormat, *importInput), *importConfirm)

	default:
		printUsage()
		os.Exit(1)
	}
}

type repositories struct {
	users    *repository.UserRepository
	families *repository.FamilyRepository
}

func open() (*database.DB, repositories) {
	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	return db, repositories{
		users:    repository.NewUserRepository(db),
		families: repository.NewFamilyRepository(db),
	}
}

func requireFlag(fs *flag.FlagSet, name, value string) {
	if value == "" {
		fmt.Printf("Error: -%s flag is required\n", name)
		fs.PrintDefaults()
		os.Exit(1)
	}
}

func formatOf(format, path string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func actor(ctx context.Context, repos repositories, username string) *models.User {
	user, err := repos.users.GetUserByUsername(ctx, username)
	if err != nil {
		log.Fatalf("Failed to look up %q: %v", username, err)
	}
	if user == nil {
		log.Fatalf("No user named %q", username)
	}
	return user
}

func handleExport(repos repositories, username, format, outputPath string) {
	ctx := context.Background()

	var write func(io.Writer, []service.ExportRow) error
	switch format {
	case service.FormatCSV:
		write = service.WriteCSV
	case service.FormatXLSX:
		write = service.WriteXLSX
	default:
		log.Fatalf("Unsupported format %q (use csv or xlsx)", format)
	}

	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("families_%s.%s", timestamp, format)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	rows, err := service.NewTransferService(repos.families).ExportAll(ctx, actor(ctx, repos, username))
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", outputPath, err)
	}
	defer file.Close()

	log.Printf("Exporting %d rows to: %s", len(rows), outputPath)
	if err := write(file, rows); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Println("Export complete!")
}

func parseFile(path, format string) []models.Family {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer file.Close()

	families, err := service.ParsePreview(file, format)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}
	return families
}

func handlePreview(inputPath, format string) {
	families := parseFile(inputPath, format)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(families); err != nil {
		log.Fatalf("Failed to print preview: %v", err)
	}

	members := 0
	for _, f := range families {
		members += len(f.Members)
	}
	log.Printf("Preview: %d families, %d members", len(families), members)
}

func handleImport(repos repositories, username, inputPath, format string, confirmed bool) {
	ctx := context.Background()
	admin := actor(ctx, repos, username)
	families := parseFile(inputPath, format)

	if !confirmed {
		fmt.Printf("WARNING: This replaces ALL families and members with %d families from %s. Type 'yes' to confirm: ", len(families), inputPath)
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}
	}

	log.Printf("Importing families from: %s", inputPath)
	if err := service.NewTransferService(repos.families).CommitImport(ctx, admin, families); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Println("Import complete!")
}

func printUsage() {
	fmt.Println("AMPA Registry Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]     Export every family to CSV or XLSX")
	fmt.Println("  backup preview [options]    Parse a file and print the families it holds")
	fmt.Println("  backup import [options]     Replace every family with the contents of a file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -as <username>    Account the export runs as (required)")
	fmt.Println("  -format <fmt>     csv or xlsx (default: csv)")
	fmt.Println("  -output <file>    Output file path (default: families_YYYYMMDD_HHMMSS.<format>)")
	fmt.Println()
	fmt.Println("Preview Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -format <fmt>     csv or xlsx (default: from extension)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -as <username>    ADMIN account the import runs as (required)")
	fmt.Println("  -format <fmt>     csv or xlsx (default: from extension)")
	fmt.Println("  -confirm          Do not ask for confirmation (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./ampa.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
