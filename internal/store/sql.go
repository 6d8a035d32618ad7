package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

const insertBatchSize = 500

var cellColumns = []string{"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8", "b9"}

// Config selects and locates the database.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type dialect struct {
	sqlDriver   string
	goose       goose.Dialect
	placeholder sq.PlaceholderFormat
}

var dialects = map[string]dialect{
	DriverSQLite:   {sqlDriver: "sqlite", goose: goose.DialectSQLite3, placeholder: sq.Question},
	DriverMySQL:    {sqlDriver: "mysql", goose: goose.DialectMySQL, placeholder: sq.Question},
	DriverPostgres: {sqlDriver: "pgx", goose: goose.DialectPostgres, placeholder: sq.Dollar},
}

// SQLDB implements DB over database/sql for sqlite, mysql and postgres.
type SQLDB struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

// Open connects to the configured database, retrying the first ping with
// exponential backoff.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*SQLDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(d.sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("database ping failed", zap.String("driver", cfg.Driver), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &SQLDB{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		logger:  logger,
	}, nil
}

// NewSQLiteDB opens a SQLite database at path (":memory:" for an ephemeral one).
func NewSQLiteDB(path string) (*SQLDB, error) {
	return Open(context.Background(), Config{Driver: DriverSQLite, DSN: path}, nil)
}

// Close closes the database connection
func (s *SQLDB) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded goose migrations.
func (s *SQLDB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(s.dialect.goose, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	for _, r := range results {
		s.logger.Info("applied migration",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration))
	}
	return nil
}

// SaveOutcomes inserts spins in batches inside one transaction.
func (s *SQLDB) SaveOutcomes(ctx context.Context, outcomes []slot.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(outcomes); start += insertBatchSize {
		end := min(start+insertBatchSize, len(outcomes))
		ins := s.builder.Insert("spins").Columns(append([]string{"s"}, cellColumns...)...)
		for _, o := range outcomes[start:end] {
			if err := o.Grid.Validate(); err != nil {
				return fmt.Errorf("spin %d: %w", o.Seq, err)
			}
			vals := make([]any, 0, slot.GridSize+1)
			vals = append(vals, o.Seq)
			for _, c := range o.Grid {
				vals = append(vals, int(c))
			}
			ins = ins.Values(vals...)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %v", ErrDuplicateOutcome, err)
			}
			return fmt.Errorf("failed to save outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcomes: %w", err)
	}
	return nil
}

// CountOutcomes returns the number of recorded spins.
func (s *SQLDB) CountOutcomes(ctx context.Context) (int, error) {
	query, args, err := s.builder.Select("COUNT(*)").From("spins").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return n, nil
}

// Outcomes returns every spin ordered by sequence number.
func (s *SQLDB) Outcomes(ctx context.Context) ([]slot.Outcome, error) {
	return s.selectOutcomes(ctx, nil)
}

// OutcomesWinningLine pushes the line-match predicate down to SQL.
func (s *SQLDB) OutcomesWinningLine(ctx context.Context, line slot.Line) ([]slot.Outcome, error) {
	return s.selectOutcomes(ctx, linePredicate(line))
}

// OutcomesWithCloverPair returns spins with two vertically adjacent clovers on a reel.
func (s *SQLDB) OutcomesWithCloverPair(ctx context.Context) ([]slot.Outcome, error) {
	return s.selectOutcomes(ctx, cloverPairPredicate())
}

func (s *SQLDB) selectOutcomes(ctx context.Context, where sq.Sqlizer) ([]slot.Outcome, error) {
	q := s.builder.Select(append([]string{"s"}, cellColumns...)...).From("spins").OrderBy("s")
	if where != nil {
		q = q.Where(where)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []slot.Outcome
	for rows.Next() {
		var seq int64
		cells := make([]int, slot.GridSize)
		dest := []any{&seq}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o, err := slot.NewOutcome(seq, cells)
		if err != nil {
			return nil, fmt.Errorf("spin %d: %w", seq, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveRun stores an analysis run, assigning an ID and timestamp when missing.
func (s *SQLDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	query, args, err := s.builder.Insert("runs").
		Columns("id", "kind", "params_json", "result_json", "outcome_count", "engine_version", "created_at").
		Values(run.ID, run.Kind, run.ParamsJSON, run.ResultJSON, run.OutcomeCount, run.EngineVersion, run.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

var runColumns = []string{"id", "kind", "params_json", "result_json", "outcome_count", "engine_version", "created_at"}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var run Run
	var created int64
	if err := row.Scan(&run.ID, &run.Kind, &run.ParamsJSON, &run.ResultJSON, &run.OutcomeCount, &run.EngineVersion, &created); err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *SQLDB) GetRun(ctx context.Context, id string) (*Run, error) {
	query, args, err := s.builder.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns a page of runs, newest first.
func (s *SQLDB) ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error) {
	query = query.normalize()

	count := s.builder.Select("COUNT(*)").From("runs")
	list := s.builder.Select(runColumns...).From("runs").
		OrderBy("created_at DESC", "id").
		Limit(uint64(query.PerPage)).
		Offset(uint64((query.Page - 1) * query.PerPage))
	if query.Kind != "" {
		count = count.Where(sq.Eq{"kind": query.Kind})
		list = list.Where(sq.Eq{"kind": query.Kind})
	}

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	listSQL, listArgs, err := list.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: total,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages(total, query.PerPage),
	}, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "23505")
}
