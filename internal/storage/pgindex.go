package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/set-night/memoirbot/internal/domain"
)

// querier is the part of pgxpool.Pool the index uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGIndex stores file metadata in the files table.
type PGIndex struct {
	pool querier
}

func NewPGIndex(pool *pgxpool.Pool) *PGIndex {
	return &PGIndex{pool: pool}
}

const fileColumns = `file_id, original_filename, stored_filename, file_path, content_type,
	file_size, upload_time, message_type, owner_type, owner_id, uploader_id`

func (i *PGIndex) Get(ctx context.Context, fileID string) (domain.FileMeta, error) {
	row := i.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE file_id = $1`, fileID)
	meta, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FileMeta{}, fmt.Errorf("file %s: %w", fileID, domain.ErrFileNotFound)
	}
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("get file %s: %w", fileID, err)
	}
	return meta, nil
}

func (i *PGIndex) Put(ctx context.Context, m domain.FileMeta) error {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (file_id) DO UPDATE SET
			original_filename = EXCLUDED.original_filename,
			stored_filename   = EXCLUDED.stored_filename,
			file_path         = EXCLUDED.file_path,
			content_type      = EXCLUDED.content_type,
			file_size         = EXCLUDED.file_size,
			upload_time       = EXCLUDED.upload_time,
			message_type      = EXCLUDED.message_type,
			owner_type        = EXCLUDED.owner_type,
			owner_id          = EXCLUDED.owner_id,
			uploader_id       = EXCLUDED.uploader_id`,
		m.FileID, m.OriginalFilename, m.StoredFilename, m.FilePath, m.ContentType,
		m.FileSize, m.UploadTime, m.MessageType, string(m.OwnerType), m.OwnerID, m.UploaderID,
	)
	if err != nil {
		return fmt.Errorf("put file %s: %w", m.FileID, err)
	}
	return nil
}

func (i *PGIndex) List(ctx context.Context) ([]domain.FileMeta, error) {
	rows, err := i.pool.Query(ctx, `SELECT `+fileColumns+` FROM files ORDER BY upload_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []domain.FileMeta
	for rows.Next() {
		meta, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func scanFile(row pgx.Row) (domain.FileMeta, error) {
	var m domain.FileMeta
	var ownerType string
	err := row.Scan(
		&m.FileID, &m.OriginalFilename, &m.StoredFilename, &m.FilePath, &m.ContentType,
		&m.FileSize, &m.UploadTime, &m.MessageType, &ownerType, &m.OwnerID, &m.UploaderID,
	)
	m.OwnerType = domain.OwnerType(ownerType)
	return m, err
}
