package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Step is one line of a goose report: an applied or rolled back migration,
// or a status row.
type Step struct {
	Version   int64
	Path      string
	Direction string
	State     string
	Duration  time.Duration
	AppliedAt time.Time
}

func (s Step) String() string {
	if s.Direction != "" {
		return fmt.Sprintf("%-4s %d %s (%s)", s.Direction, s.Version, s.Path, s.Duration.Round(time.Millisecond))
	}
	if s.AppliedAt.IsZero() {
		return fmt.Sprintf("%-7s %d %s", s.State, s.Version, s.Path)
	}
	return fmt.Sprintf("%-7s %d %s at %s", s.State, s.Version, s.Path, s.AppliedAt.UTC().Format(time.RFC3339))
}

// migrationFS serves the migrations compiled into the binary for DefaultDir
// and the filesystem otherwise.
func migrationFS(dir string) (fs.FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if dir == DefaultDir {
		return fs.Sub(embedded, "migrations")
	}
	return os.DirFS(dir), nil
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, err := migrationFS(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider for %s: %w", dir, err)
	}
	return provider, nil
}

// Run executes up, down or status against db. The provider is not closed
// since that would close db.
func Run(ctx context.Context, db *sql.DB, dir string, command string) ([]Step, error) {
	switch command {
	case "up", "down", "status":
	default:
		return nil, fmt.Errorf("unsupported goose command %q", command)
	}

	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose up: %w", err)
		}
		return resultSteps(results...), nil
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return resultSteps(result), nil
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	steps := make([]Step, 0, len(statuses))
	for _, st := range statuses {
		step := Step{State: string(st.State), AppliedAt: st.AppliedAt}
		if st.Source != nil {
			step.Version, step.Path = st.Source.Version, st.Source.Path
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// MigrateToVersion moves the schema up or down to targetVersion
// (YYYYMMDDHHMMSS).
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) ([]Step, error) {
	if targetVersion == "" {
		return nil, fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = provider.UpTo(ctx, target)
	default:
		results, err = provider.DownTo(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return resultSteps(results...), nil
}

func resultSteps(results ...*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration,
		})
	}
	return steps
}
