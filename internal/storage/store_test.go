package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
)

func newLocalStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := NewLocalBlobs(dir)
	require.NoError(t, err)
	index, err := OpenJSONIndex(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	return NewStore(blobs, index, "https://bot.example.com/"), dir
}

func readAll(t *testing.T, s *Store, meta domain.FileMeta) []byte {
	t.Helper()
	rc, err := s.Open(context.Background(), meta)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestStore_SaveAndResolveByURL(t *testing.T) {
	s, dir := newLocalStore(t)
	ctx := context.Background()
	body := []byte("\x89PNG fake image body")

	meta, err := s.Save(ctx, SaveParams{
		Data:     body,
		Filename: "photo.png",
		Owner:    domain.UserOwner("U1"),
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, domain.MessageTypeImage, meta.MessageType)
	assert.Equal(t, "U1", meta.UploaderID)
	assert.Equal(t, meta.FileID+".png", meta.StoredFilename)
	assert.Equal(t, filepath.Join(dir, "user_U1", meta.StoredFilename), meta.FilePath)

	u := s.URLFor(meta, domain.Requester{})
	assert.Equal(t, "https://bot.example.com/media/image/"+meta.FileID, u)

	id, ok := FileIDFromURL(u)
	require.True(t, ok)
	got, err := s.GetByID(ctx, id, domain.Requester{UserID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, body, readAll(t, s, got))
}

func TestStore_GroupAccess(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, SaveParams{
		Data:        []byte("%PDF-1.7"),
		Filename:    "album.pdf",
		ContentType: "application/pdf",
		Owner:       domain.GroupOwner("G1"),
		UploaderID:  "U9",
	})
	require.NoError(t, err)
	assert.Equal(t, "U9", meta.UploaderID)
	assert.Equal(t, domain.MessageTypeFile, meta.MessageType)

	_, err = s.GetByID(ctx, meta.FileID, domain.Requester{GroupID: "G1"})
	assert.NoError(t, err)

	_, err = s.GetByID(ctx, meta.FileID, domain.Requester{UserID: "U1"})
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	// Internal lookups carry no requester.
	_, err = s.GetByID(ctx, meta.FileID, domain.Requester{})
	assert.NoError(t, err)
}

func TestStore_UnownedIsPublic(t *testing.T) {
	s, dir := newLocalStore(t)
	meta, err := s.Save(context.Background(), SaveParams{Data: []byte("x"), Filename: "note.txt"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, meta.StoredFilename), meta.FilePath)
	_, err = s.GetByID(context.Background(), meta.FileID, domain.Requester{UserID: "anyone"})
	assert.NoError(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newLocalStore(t)
	_, err := s.GetByID(context.Background(), "nope", domain.Requester{})
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStore_ConcurrentSavesAllIndexed(t *testing.T) {
	s, dir := newLocalStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta, err := s.Save(ctx, SaveParams{
				Data:     []byte(fmt.Sprintf("body-%d", i)),
				Filename: fmt.Sprintf("f%d.jpg", i),
				Owner:    domain.UserOwner("U1"),
			})
			assert.NoError(t, err)
			ids[i] = meta.FileID
		}(i)
	}
	wg.Wait()

	// A fresh index over the same file sees every entry.
	reopened, err := OpenJSONIndex(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	all, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
	for _, id := range ids {
		_, err := reopened.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestStore_ListFiltersByRequester(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	for _, owner := range []domain.Owner{domain.UserOwner("U1"), domain.UserOwner("U2"), domain.GroupOwner("G1")} {
		_, err := s.Save(ctx, SaveParams{Data: []byte("x"), Filename: "a.jpg", Owner: owner})
		require.NoError(t, err)
	}

	mine, err := s.List(ctx, domain.Requester{UserID: "U1"}, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "U1", mine[0].OwnerID)

	all, err := s.List(ctx, domain.Requester{}, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileURL_Params(t *testing.T) {
	s := NewStore(nil, nil, "http://localhost:8000")

	assert.Equal(t, "http://localhost:8000/files/abc", s.FileURL("abc", domain.MessageTypeFile, domain.Requester{}))
	assert.Equal(t,
		"http://localhost:8000/media/video/abc?group_id=G1&user_id=U1",
		s.FileURL("abc", domain.MessageTypeVideo, domain.Requester{UserID: "U1", GroupID: "G1"}),
	)
}

func TestFileIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"http://host/media/image/abc-123", "abc-123", true},
		{"/media/image/abc?user_id=U1", "abc", true},
		{"https://host/prefix/files/xyz", "xyz", true},
		{"https://cdn.example.com/pic.jpg", "", false},
		{"/media/image/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := FileIDFromURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseS3Location(t *testing.T) {
	bucket, key, ok := parseS3Location("s3://memoirs/uploads/user_U1/a.png")
	require.True(t, ok)
	assert.Equal(t, "memoirs", bucket)
	assert.Equal(t, "uploads/user_U1/a.png", key)

	_, _, ok = parseS3Location("/var/uploads/a.png")
	assert.False(t, ok)
}
