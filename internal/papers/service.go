package papers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"time"

	"papers-go/internal/model"
)

// DefaultMaxScanSize bounds a single uploaded scan.
const DefaultMaxScanSize int64 = 32 << 20

// PapersService is the orchestration layer behind the CLI. It owns the
// review scheduling rules and coordinates the store, vault and encryptor.
// Every operation takes now explicitly; the service never reads a clock.
type PapersService struct {
	store       Store
	vault       Vault
	fsmgr       FilesystemManager
	encryptor   Encryptor
	logger      Logger
	idgen       IDGenerator
	maxScanSize int64
}

// NewPapersService creates a PapersService. A nil encryptor stores scans in
// plaintext; a nil logger or idgen falls back to NopLogger and UUIDGenerator.
func NewPapersService(store Store, vault Vault, fsmgr FilesystemManager, encryptor Encryptor, logger Logger, idgen IDGenerator) *PapersService {
	if logger == nil {
		logger = NewNopLogger()
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &PapersService{
		store:       store,
		vault:       vault,
		fsmgr:       fsmgr,
		encryptor:   encryptor,
		logger:      logger,
		idgen:       idgen,
		maxScanSize: DefaultMaxScanSize,
	}
}

// SetMaxScanSize overrides DefaultMaxScanSize. Non-positive values are ignored.
func (s *PapersService) SetMaxScanSize(n int64) {
	if n > 0 {
		s.maxScanSize = n
	}
}

// AddPaper stores one scan in the vault and creates an ungraded paper for it.
func (s *PapersService) AddPaper(ctx context.Context, ownerID string, scan io.Reader, tags []string, now time.Time) (*model.Paper, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(scan, s.maxScanSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading scan: %w", err)
	}
	if len(data) == 0 {
		return nil, &ValidationError{Field: "scan", Reason: "file is empty"}
	}
	if int64(len(data)) > s.maxScanSize {
		return nil, &ValidationError{Field: "scan", Reason: fmt.Sprintf("larger than %d bytes", s.maxScanSize)}
	}

	// Keyed by the plaintext checksum: age output differs on every call.
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	encrypted := s.encryptor != nil
	if encrypted {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, fmt.Errorf("encrypting scan: %w", err)
		}
		data = buf.Bytes()
	}

	if err := s.vault.PutContent(checksum, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, persistence("storing scan", err)
	}

	paper := &model.Paper{
		ID:         s.idgen.New(),
		OwnerID:    ownerID,
		ContentRef: checksum,
		Encrypted:  encrypted,
		Tags:       model.NormalizeTags(tags),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertPaper(ctx, paper); err != nil {
		return nil, persistence("inserting paper", err)
	}

	s.logger.Info("paper added", "id", paper.ID, "owner", ownerID, "tags", paper.Tags)
	return paper, nil
}

// AddScans discovers scans under rawPath and adds each as a paper.
// Papers added before a failure are returned alongside the error.
func (s *PapersService) AddScans(ctx context.Context, ownerID, rawPath string, recursive bool, tags []string, now time.Time) ([]*model.Paper, error) {
	files, err := s.fsmgr.FindScans(rawPath, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding scans: %w", err)
	}

	added := make([]*model.Paper, 0, len(files))
	for _, f := range files {
		paper, err := s.addScanFile(ctx, ownerID, f, tags, now)
		if err != nil {
			return added, fmt.Errorf("adding %s: %w", f.Path, err)
		}
		added = append(added, paper)
	}
	return added, nil
}

func (s *PapersService) addScanFile(ctx context.Context, ownerID string, f ScanFile, tags []string, now time.Time) (*model.Paper, error) {
	r, err := s.fsmgr.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening scan: %w", err)
	}
	defer r.Close()

	s.logger.Debug("adding scan", "path", f.Path, "size", f.Size)
	return s.AddPaper(ctx, ownerID, r, tags, now)
}

// GetPaper returns one of the owner's papers.
func (s *PapersService) GetPaper(ctx context.Context, ownerID, id string) (*model.Paper, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	return s.ownedPaper(ctx, ownerID, id)
}

// ListPapers returns the owner's papers matching filter, oldest first.
func (s *PapersService) ListPapers(ctx context.Context, ownerID string, filter PaperFilter) ([]*model.Paper, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	filter.Tag = model.NormalizeTag(filter.Tag)
	papers, err := s.store.QueryByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, persistence("listing papers", err)
	}
	return papers, nil
}

// TagPaper adds tags to a paper. Tags already present are ignored.
func (s *PapersService) TagPaper(ctx context.Context, ownerID, id string, tags []string, now time.Time) (*model.Paper, error) {
	return s.editTags(ctx, ownerID, id, now, func(existing []string) []string {
		return model.MergeTags(existing, tags)
	})
}

// UntagPaper removes tags from a paper. Tags not present are ignored.
func (s *PapersService) UntagPaper(ctx context.Context, ownerID, id string, tags []string, now time.Time) (*model.Paper, error) {
	return s.editTags(ctx, ownerID, id, now, func(existing []string) []string {
		return model.RemoveTags(existing, tags)
	})
}

func (s *PapersService) editTags(ctx context.Context, ownerID, id string, now time.Time, edit func([]string) []string) (*model.Paper, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	paper, err := s.ownedPaper(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	tags := edit(paper.Tags)
	if slices.Equal(tags, paper.Tags) {
		return paper, nil
	}
	if err := s.store.UpdateTags(ctx, paper.ID, tags, now); err != nil {
		return nil, persistence("updating tags", err)
	}

	paper.Tags = tags
	paper.UpdatedAt = now
	s.logger.Info("tags updated", "id", paper.ID, "tags", tags)
	return paper, nil
}

// DeletePapers deletes the owner's papers. IDs that are missing or belong to
// another owner are skipped; the number actually deleted is returned.
// Stored scans stay in the vault since they may be shared by other papers.
func (s *PapersService) DeletePapers(ctx context.Context, ownerID string, ids []string) (int, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return 0, err
	}
	if err := validateVar("ids", ids, "min=1,dive,required"); err != nil {
		return 0, err
	}

	n, err := s.store.DeletePapers(ctx, ownerID, ids)
	if err != nil {
		return 0, persistence("deleting papers", err)
	}
	s.logger.Info("papers deleted", "owner", ownerID, "requested", len(ids), "deleted", n)
	return n, nil
}

// ExportScan writes the paper's scan to w, decrypting it when it was stored
// encrypted. passphrase is ignored for plaintext scans.
func (s *PapersService) ExportScan(ctx context.Context, ownerID, id string, w io.Writer, passphrase string) error {
	paper, err := s.GetPaper(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if !paper.Encrypted {
		if err := s.vault.GetContent(paper.ContentRef, w); err != nil {
			return persistence("reading scan", err)
		}
		return nil
	}

	if s.encryptor == nil {
		return fmt.Errorf("paper %s is encrypted but no encryptor is configured", paper.ID)
	}
	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	var buf bytes.Buffer
	if err := s.vault.GetContent(paper.ContentRef, &buf); err != nil {
		return persistence("reading scan", err)
	}
	if err := dc.Decrypt(&buf, w); err != nil {
		return fmt.Errorf("decrypting scan: %w", err)
	}
	return nil
}

// ownedPaper loads a paper and hides papers of other owners as not found.
func (s *PapersService) ownedPaper(ctx context.Context, ownerID, id string) (*model.Paper, error) {
	if err := validateVar("id", id, "required"); err != nil {
		return nil, err
	}
	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		return nil, persistence("loading paper", err)
	}
	if paper == nil || paper.OwnerID != ownerID {
		return nil, paperNotFound(id)
	}
	return paper, nil
}
