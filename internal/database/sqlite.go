package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"papers-go/internal/database/migrations"
	"papers-go/internal/model"
	"papers-go/internal/papers"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// tagSeparator joins tags in group_concat; tags never contain control characters.
const tagSeparator = "\x1f"

const paperColumns = `
	p.id, p.owner_id, p.content_ref, p.encrypted, p.is_correct,
	p.last_practiced, p.next_practice_due, p.created_at, p.updated_at,
	(SELECT group_concat(t.tag, char(31)) FROM paper_tags t WHERE t.paper_id = p.id)`

// SQLiteDatabase implements papers.Store on SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens a SQLite database without touching its schema.
// path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already configured connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens a SQLite connection with foreign keys enabled.
// The pool is limited to one connection: the CLI is single-user, and an
// in-memory database exists only on the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Paper operations

func (s *SQLiteDatabase) GetPaper(ctx context.Context, id string) (*model.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers p WHERE p.id = ?`, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding paper %s: %w", id, err)
	}
	return paper, nil
}

func (s *SQLiteDatabase) QueryByOwner(ctx context.Context, ownerID string, filter papers.PaperFilter) ([]*model.Paper, error) {
	where := []string{"p.owner_id = ?"}
	args := []any{ownerID}

	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM paper_tags t WHERE t.paper_id = p.id AND t.tag = ?)")
		args = append(args, filter.Tag)
	}
	if filter.DueAt != nil {
		// Same classification as model.Paper.State: unreviewed or due.
		where = append(where, `(p.last_practiced IS NULL
			OR (p.next_practice_due IS NOT NULL AND p.next_practice_due <= ?)
			OR (p.next_practice_due IS NULL AND COALESCE(p.is_correct, 0) = 0))`)
		args = append(args, dbTime(*filter.DueAt))
	}
	if filter.Incorrect {
		where = append(where, "p.is_correct = 0")
	}
	if filter.Ungraded {
		where = append(where, "p.last_practiced IS NULL")
	}

	query := `SELECT ` + paperColumns + ` FROM papers p WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY p.created_at, p.rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var result []*model.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper row: %w", err)
		}
		result = append(result, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating paper rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) InsertPaper(ctx context.Context, paper *model.Paper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO papers (id, owner_id, content_ref, encrypted, is_correct,
			last_practiced, next_practice_due, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paper.ID,
		paper.OwnerID,
		paper.ContentRef,
		paper.Encrypted,
		nullBool(paper.IsCorrect),
		nullTime(paper.LastPracticed),
		nullTime(paper.NextPracticeDue),
		dbTime(paper.CreatedAt),
		dbTime(paper.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting paper %s: %w", paper.ID, err)
	}

	if err := insertTags(ctx, tx, paper.ID, paper.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateTags(ctx context.Context, id string, tags []string, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE papers SET updated_at = ? WHERE id = ?`, dbTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("touching paper %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking update of paper %s: %w", id, err)
	} else if n == 0 {
		return papers.ErrNoRowsUpdated
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_tags WHERE paper_id = ?`, id); err != nil {
		return fmt.Errorf("clearing tags of paper %s: %w", id, err)
	}
	if err := insertTags(ctx, tx, id, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// insertTags adds tags to a paper. Repeated tags are ignored.
func insertTags(ctx context.Context, tx *sql.Tx, paperID string, tags []string) error {
	for _, tag := range tags {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO paper_tags (paper_id, tag) VALUES (?, ?)`, paperID, tag)
		if err != nil {
			return fmt.Errorf("tagging paper %s with %q: %w", paperID, tag, err)
		}
	}
	return nil
}

// ApplyGrade updates the paper's scheduling fields and appends the history
// record in one transaction.
func (s *SQLiteDatabase) ApplyGrade(ctx context.Context, update papers.GradeUpdate, record *model.GradeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE papers
		SET is_correct = ?, last_practiced = ?, next_practice_due = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		update.IsCorrect,
		dbTime(update.LastPracticed),
		nullTime(update.NextPracticeDue),
		dbTime(update.LastPracticed),
		update.ID,
		update.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating paper %s: %w", update.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of paper %s: %w", update.ID, err)
	}
	if n == 0 {
		return papers.ErrNoRowsUpdated
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO grade_records (id, item_id, owner_id, is_correct, graded_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.ItemID,
		record.OwnerID,
		record.IsCorrect,
		dbTime(record.GradedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting grade record for paper %s: %w", update.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Grade history

func (s *SQLiteDatabase) ListGradeRecords(ctx context.Context, ownerID, itemID string, limit int) ([]*model.GradeRecord, error) {
	query := `SELECT id, item_id, owner_id, is_correct, graded_at FROM grade_records WHERE owner_id = ?`
	args := []any{ownerID}
	if itemID != "" {
		query += ` AND item_id = ?`
		args = append(args, itemID)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += ` ORDER BY graded_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing grade records: %w", err)
	}
	defer rows.Close()

	var records []*model.GradeRecord
	for rows.Next() {
		var r model.GradeRecord
		if err := rows.Scan(&r.ID, &r.ItemID, &r.OwnerID, &r.IsCorrect, &r.GradedAt); err != nil {
			return nil, fmt.Errorf("scanning grade record row: %w", err)
		}
		r.GradedAt = r.GradedAt.UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grade record rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) DeletePapers(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM papers WHERE owner_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting papers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted papers: %w", err)
	}
	return int(n), nil
}

// Maintenance

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version of the database.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*model.Paper, error) {
	var (
		p             model.Paper
		isCorrect     sql.NullBool
		lastPracticed sql.NullTime
		nextDue       sql.NullTime
		tags          sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.ContentRef,
		&p.Encrypted,
		&isCorrect,
		&lastPracticed,
		&nextDue,
		&p.CreatedAt,
		&p.UpdatedAt,
		&tags,
	)
	if err != nil {
		return nil, err
	}

	if isCorrect.Valid {
		p.IsCorrect = model.Bool(isCorrect.Bool)
	}
	if lastPracticed.Valid {
		p.LastPracticed = model.Time(lastPracticed.Time.UTC())
	}
	if nextDue.Valid {
		p.NextPracticeDue = model.Time(nextDue.Time.UTC())
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	p.Tags = []string{}
	if tags.Valid && tags.String != "" {
		p.Tags = strings.Split(tags.String, tagSeparator)
		slices.Sort(p.Tags)
	}
	return &p, nil
}

// dbTime normalizes times to UTC so stored values compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// Compile-time check that SQLiteDatabase implements papers.Store
var _ papers.Store = (*SQLiteDatabase)(nil)
