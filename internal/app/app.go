package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"papers-go/internal/config"
	"papers-go/internal/database"
	"papers-go/internal/database/migrations"
	"papers-go/internal/encryption"
	"papers-go/internal/fs"
	"papers-go/internal/model"
	"papers-go/internal/papers"
	"papers-go/internal/vault"
)

// Options overrides the collaborators NewPapersApp builds by default.
type Options struct {
	Clock   papers.Clock
	IDGen   papers.IDGenerator
	Console io.Writer // receives a copy of the log; os.Stderr when nil
	Args    []string  // command arguments, for the operation log
}

// PapersApp is the application layer between the CLI and PapersService.
// It builds every dependency from config, reads the clock for each
// operation and owns the database and log file until Close.
type PapersApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     papers.Vault
	encryptor papers.Encryptor
	service   *papers.PapersService
	clock     papers.Clock
	logger    *slogAdapter
	op        *Operation
	owner     string
	logFile   *os.File
}

// NewPapersApp creates a fully wired PapersApp from the given config.
// command names the CLI command being run (e.g. "grade", "session").
// The caller must call Close when done.
func NewPapersApp(ctx context.Context, cfg *config.Config, command string, opts Options) (*PapersApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = papers.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = papers.UUIDGenerator{}
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not found: run `papers config keys`")
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	op := NewOperation(command, opts.Args, opts.Clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level, opts.Console)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	fsmgr := fs.NewOSFilesystemManager(cfg.Scan.Extensions, cfg.Scan.Ignore)
	svc := papers.NewPapersService(db, v, fsmgr, enc, adapter, opts.IDGen)
	svc.SetMaxScanSize(cfg.Scan.MaxSize)

	adapter.Debug("operation started", "command", command, "args", op.Parameters())

	return &PapersApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   svc,
		clock:     opts.Clock,
		logger:    adapter,
		op:        op,
		owner:     cfg.OwnerID,
		logFile:   logFile,
	}, nil
}

// SetOwner overrides the configured owner for this invocation.
func (a *PapersApp) SetOwner(ownerID string) {
	if ownerID != "" {
		a.owner = ownerID
	}
}

// Owner returns the owner every operation acts for.
func (a *PapersApp) Owner() string {
	return a.owner
}

// track records err as the operation outcome and returns it.
func (a *PapersApp) track(err error) error {
	a.op.Fail(err)
	return err
}

// AddScans adds every scan found at rawPath with the given tags.
func (a *PapersApp) AddScans(ctx context.Context, rawPath string, recursive bool, tags []string) ([]*model.Paper, error) {
	added, err := a.service.AddScans(ctx, a.owner, rawPath, recursive, tags, a.clock.Now())
	return added, a.track(err)
}

// ListOptions are the raw list flags from the CLI.
type ListOptions struct {
	Tag       string
	DueOnly   bool // only papers due now
	Incorrect bool
	Ungraded  bool
}

// ListPapers returns the owner's papers matching opts, oldest first.
func (a *PapersApp) ListPapers(ctx context.Context, opts ListOptions) ([]*model.Paper, error) {
	filter := papers.PaperFilter{
		Tag:       opts.Tag,
		Incorrect: opts.Incorrect,
		Ungraded:  opts.Ungraded,
	}
	if opts.DueOnly {
		now := a.clock.Now()
		filter.DueAt = &now
	}
	list, err := a.service.ListPapers(ctx, a.owner, filter)
	return list, a.track(err)
}

// TagPaper adds tags to a paper.
func (a *PapersApp) TagPaper(ctx context.Context, id string, tags []string) (*model.Paper, error) {
	p, err := a.service.TagPaper(ctx, a.owner, id, tags, a.clock.Now())
	return p, a.track(err)
}

// UntagPaper removes tags from a paper.
func (a *PapersApp) UntagPaper(ctx context.Context, id string, tags []string) (*model.Paper, error) {
	p, err := a.service.UntagPaper(ctx, a.owner, id, tags, a.clock.Now())
	return p, a.track(err)
}

// Now returns the current time from the app's clock.
func (a *PapersApp) Now() time.Time {
	return a.clock.Now()
}

// DueSet returns the papers eligible for review now.
func (a *PapersApp) DueSet(ctx context.Context) ([]*model.Paper, error) {
	due, err := a.service.SelectDue(ctx, a.owner, a.clock.Now())
	return due, a.track(err)
}

// SessionOptions are the raw session flags from the CLI.
type SessionOptions struct {
	Size    *int     // nil uses the configured default
	Quotas  []string // "tag=count" pairs
	Seed    uint64   // 0 uses the configured seed; both 0 means random
	DueOnly bool
	Tag     string
}

// ComposeSession draws a practice session.
func (a *PapersApp) ComposeSession(ctx context.Context, opts SessionOptions) (*papers.Session, error) {
	quotas, err := papers.ParseQuotas(opts.Quotas)
	if err != nil {
		return nil, a.track(err)
	}

	size := a.cfg.Session.DefaultSize
	if size == 0 {
		size = config.DefaultSessionSize
	}
	if opts.Size != nil {
		size = *opts.Size
	}

	seed := opts.Seed
	if seed == 0 {
		seed = a.cfg.Session.Seed
	}
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}

	req := papers.SessionRequest{Size: size, Quotas: quotas, DueOnly: opts.DueOnly, Tag: opts.Tag}
	session, err := a.service.ComposeSession(ctx, a.owner, req, a.clock.Now(), rng)
	return session, a.track(err)
}

// RecordGrades parses "ID=right|wrong" outcomes and records them. Nothing
// is recorded when any outcome is malformed.
func (a *PapersApp) RecordGrades(ctx context.Context, raw []string) (*papers.GradeReport, error) {
	outcomes := make([]papers.Outcome, 0, len(raw))
	for _, s := range raw {
		o, err := papers.ParseOutcome(s)
		if err != nil {
			return nil, a.track(err)
		}
		outcomes = append(outcomes, o)
	}
	report, err := a.service.RecordGrades(ctx, a.owner, outcomes, a.clock.Now())
	return report, a.track(err)
}

// History returns grade records, newest first.
func (a *PapersApp) History(ctx context.Context, itemID string, limit int) ([]*model.GradeRecord, error) {
	records, err := a.service.History(ctx, a.owner, itemID, limit)
	return records, a.track(err)
}

// Stats summarizes the owner's papers now.
func (a *PapersApp) Stats(ctx context.Context) (*papers.Stats, error) {
	st, err := a.service.Stats(ctx, a.owner, a.clock.Now())
	return st, a.track(err)
}

// NeedsPassphrase reports whether exporting the paper requires unlocking
// the private key.
func (a *PapersApp) NeedsPassphrase(ctx context.Context, id string) (bool, error) {
	p, err := a.service.GetPaper(ctx, a.owner, id)
	if err != nil {
		return false, a.track(err)
	}
	return p.Encrypted, nil
}

// ExportScan writes the paper's scan to outPath, which must not exist.
func (a *PapersApp) ExportScan(ctx context.Context, id, outPath, passphrase string) error {
	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return a.track(fmt.Errorf("creating output file: %w", err))
	}

	err = a.service.ExportScan(ctx, a.owner, id, f, passphrase)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing output file: %w", cerr)
	}
	if err != nil {
		os.Remove(outPath)
	}
	return a.track(err)
}

// DeletePapers deletes papers and returns how many were removed.
func (a *PapersApp) DeletePapers(ctx context.Context, ids []string) (int, error) {
	n, err := a.service.DeletePapers(ctx, a.owner, ids)
	return n, a.track(err)
}

// Backup writes a copy of the database to destPath.
func (a *PapersApp) Backup(ctx context.Context, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return a.track(fmt.Errorf("backup destination already exists: %s", destPath))
	}
	err := a.db.BackupTo(ctx, destPath)
	if err == nil {
		a.logger.Info("database backed up", "dest", destPath)
	}
	return a.track(err)
}

// Close logs the operation outcome and releases the database and log file.
func (a *PapersApp) Close() error {
	a.logger.Debug("operation finished",
		"command", a.op.Command,
		"status", a.op.Status,
		"elapsed", a.op.Elapsed(a.clock.Now()),
	)

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// MigrateDatabase applies pending migrations to the configured database
// and returns the resulting status.
func MigrateDatabase(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return migrations.Status{}, err
	}
	return db.MigrationStatus()
}

// DatabaseStatus reports the schema version of the configured database.
// A never-migrated database is reported with Current 0 and no error.
func DatabaseStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	st, err := db.MigrationStatus()
	if errors.Is(err, migrations.ErrNoVersion) {
		return st, nil
	}
	return st, err
}

// SetupEncryption generates the key pair for the configured encryptor.
func SetupEncryption(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled (encryption.type = %q)", cfg.Encryption.Type)
	}
	return enc.Setup(passphrase)
}
