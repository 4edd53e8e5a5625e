package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationPattern matches migration files such as 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single versioned DDL script.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// ReadMigrations parses the migration files in fsys, substituting the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders. The checksum is taken
// before substitution so it tracks the script, not its target.
func ReadMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// PendingMigrations returns the migrations whose version has not been applied.
func PendingMigrations(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrate creates the dataset tables by applying every pending embedded
// migration and recording it in schema_migrations. It returns the number of
// migrations applied.
func (s *Store) Migrate(ctx context.Context, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	if err := s.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, s.table("schema_migrations")), nil); err != nil {
		return 0, fmt.Errorf("Migrate: ensure schema_migrations: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	all, err := ReadMigrations(sub, s.projectID, s.datasetID)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}
	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	pending := PendingMigrations(all, applied)
	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := s.exec(ctx, m.SQL, nil); err != nil {
			return 0, fmt.Errorf("Migrate: execute %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := s.recordMigration(ctx, m, appliedBy); err != nil {
			return 0, fmt.Errorf("Migrate: record %04d_%s: %w", m.Version, m.Name, err)
		}
	}

	log.Info().Int("applied", len(pending)).Int("total", len(all)).Msg("BigQuery migrations complete")
	return len(pending), nil
}

func (s *Store) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	type row struct {
		Version   int64               `bigquery:"version"`
		Name      string              `bigquery:"name"`
		AppliedAt time.Time           `bigquery:"applied_at"`
		Checksum  bigquery.NullString `bigquery:"checksum"`
		AppliedBy bigquery.NullString `bigquery:"applied_by"`
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, s.table("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var r row
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(r.Version),
			Name:      r.Name,
			AppliedAt: r.AppliedAt,
			Checksum:  r.Checksum.StringVal,
			AppliedBy: r.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (s *Store) recordMigration(ctx context.Context, m Migration, appliedBy string) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, s.table("schema_migrations"))

	return s.exec(ctx, sql, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	})
}
