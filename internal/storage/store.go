package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/memoirbot/internal/domain"
)

// Store is the object store: bodies live in Blobs, metadata in an Index.
type Store struct {
	blobs   Blobs
	index   Index
	baseURL string
	now     func() time.Time
	onSave  func(domain.FileMeta)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSaveHook is called after every successful Save.
func WithSaveHook(fn func(domain.FileMeta)) Option {
	return func(s *Store) { s.onSave = fn }
}

func NewStore(blobs Blobs, index Index, baseURL string, opts ...Option) *Store {
	s := &Store{
		blobs:   blobs,
		index:   index,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SaveParams struct {
	Data        []byte
	Filename    string
	ContentType string
	Owner       domain.Owner
	UploaderID  string
}

func (s *Store) Save(ctx context.Context, p SaveParams) (domain.FileMeta, error) {
	fileID := uuid.NewString()

	contentType := p.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(p.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ext := filepath.Ext(p.Filename)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	stored := fileID + ext

	key := stored
	if !p.Owner.IsZero() {
		key = path.Join(string(p.Owner.Type)+"_"+p.Owner.ID, stored)
	}

	location, err := s.blobs.Put(ctx, key, p.Data, contentType)
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("save file: %w", err)
	}

	uploader := p.UploaderID
	if uploader == "" {
		uploader = p.Owner.ID
	}
	meta := domain.FileMeta{
		FileID:           fileID,
		OriginalFilename: p.Filename,
		StoredFilename:   stored,
		FilePath:         location,
		ContentType:      contentType,
		FileSize:         int64(len(p.Data)),
		UploadTime:       s.now().UTC(),
		MessageType:      domain.MessageTypeFor(contentType),
		OwnerType:        p.Owner.Type,
		OwnerID:          p.Owner.ID,
		UploaderID:       uploader,
	}
	if err := s.index.Put(ctx, meta); err != nil {
		return domain.FileMeta{}, fmt.Errorf("save file metadata: %w", err)
	}

	slog.Info("file saved", "file_id", fileID, "size", meta.FileSize,
		"message_type", meta.MessageType, "owner_type", meta.OwnerType, "owner_id", meta.OwnerID)
	if s.onSave != nil {
		s.onSave(meta)
	}
	return meta, nil
}

// FileURL builds the public URL of a file, carrying the requester as query
// parameters when known.
func (s *Store) FileURL(fileID, messageType string, req domain.Requester) string {
	var u string
	switch messageType {
	case domain.MessageTypeImage, domain.MessageTypeVideo, domain.MessageTypeAudio:
		u = s.baseURL + "/media/" + messageType + "/" + fileID
	default:
		u = s.baseURL + "/files/" + fileID
	}

	q := url.Values{}
	if req.UserID != "" {
		q.Set("user_id", req.UserID)
	}
	if req.GroupID != "" {
		q.Set("group_id", req.GroupID)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// URLFor is FileURL for a saved file.
func (s *Store) URLFor(meta domain.FileMeta, req domain.Requester) string {
	return s.FileURL(meta.FileID, meta.MessageType, req)
}

// FileIDFromURL extracts the file id from a URL produced by FileURL. Both
// absolute and path-only forms are accepted.
func FileIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	p := strings.Trim(u.Path, "/")
	parts := strings.Split(p, "/")

	// The path may sit under a prefix, so match from the end.
	switch {
	case len(parts) >= 3 && parts[len(parts)-3] == "media":
		id := parts[len(parts)-1]
		return id, id != ""
	case len(parts) >= 2 && parts[len(parts)-2] == "files":
		id := parts[len(parts)-1]
		return id, id != ""
	}
	return "", false
}

// GetByID returns metadata when the requester may read the file. Denied and
// missing files both report domain.ErrFileNotFound.
func (s *Store) GetByID(ctx context.Context, fileID string, req domain.Requester) (domain.FileMeta, error) {
	meta, err := s.index.Get(ctx, fileID)
	if err != nil {
		return domain.FileMeta{}, err
	}
	if !req.IsZero() && !CanAccess(meta, req) {
		slog.Warn("file access denied", "file_id", fileID,
			"owner_type", meta.OwnerType, "owner_id", meta.OwnerID,
			"user_id", req.UserID, "group_id", req.GroupID)
		return domain.FileMeta{}, fmt.Errorf("file %s: %w", fileID, domain.ErrFileNotFound)
	}
	return meta, nil
}

// CanAccess applies the owner rule: unowned files are public, user files
// need the same user, group files need the same group.
func CanAccess(meta domain.FileMeta, req domain.Requester) bool {
	switch meta.OwnerType {
	case domain.OwnerUser:
		return meta.OwnerID == "" || meta.OwnerID == req.UserID
	case domain.OwnerGroup:
		return meta.OwnerID == "" || meta.OwnerID == req.GroupID
	default:
		return true
	}
}

// Open returns the body of a file. Callers check access first.
func (s *Store) Open(ctx context.Context, meta domain.FileMeta) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, meta.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", meta.FileID, err)
	}
	return rc, nil
}

// List returns files visible to the requester, newest first. A zero
// requester sees everything.
func (s *Store) List(ctx context.Context, req domain.Requester, limit int) ([]domain.FileMeta, error) {
	all, err := s.index.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FileMeta, 0, len(all))
	for _, m := range all {
		if !req.IsZero() && !CanAccess(m, req) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
