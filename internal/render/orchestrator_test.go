package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/storage"
)

type fakeRenderer struct {
	pdf     []byte
	err     error
	block   bool
	workDir string
	doc     *Document
	staged  map[string][]byte
}

func (f *fakeRenderer) Render(ctx context.Context, workDir string, doc *Document) ([]byte, error) {
	f.workDir = workDir
	f.doc = doc
	f.staged = map[string][]byte{}
	entries, _ := os.ReadDir(workDir)
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(workDir, e.Name()))
		f.staged[e.Name()] = data
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.pdf, f.err
}

func bareSession() *domain.Session {
	s := quickSession()
	s.Data.CoverImageURL = ""
	s.Data.SpreadImageURL = ""
	s.Data.SingleImageURL = ""
	return s
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cover.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFileStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewLocalBlobs(dir)
	require.NoError(t, err)
	index, err := storage.OpenJSONIndex(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	return storage.NewStore(blobs, index, "http://bot.local")
}

func TestOrchestrator_StagesImagesAndCleansUp(t *testing.T) {
	srv := newImageServer(t)
	files := newFileStore(t)
	ctx := context.Background()

	meta, err := files.Save(ctx, storage.SaveParams{
		Data:     []byte("stored-jpeg"),
		Filename: "spread.jpg",
		Owner:    domain.UserOwner("U1"),
	})
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "single.gif")
	require.NoError(t, os.WriteFile(local, []byte("gif-bytes"), 0o644))

	s := quickSession()
	s.Data.CoverImageURL = srv.URL + "/cover.png"
	s.Data.SpreadImageURL = files.URLFor(meta, domain.Requester{})
	s.Data.SingleImageURL = local
	s.Data.Timeline = []domain.TimelineEntry{{Year: 2000, Title: "x", Image: srv.URL + "/missing.jpg"}}

	r := &fakeRenderer{pdf: []byte("%PDF-1.7")}
	o := NewOrchestrator(r, files, nil, WithScratchDir(t.TempDir()), WithClock(func() time.Time { return testNow }))

	out, err := o.Render(ctx, s, VariantFull)
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7"), out.PDF)
	assert.Equal(t, "memoir_私の人生_20240520_100000.pdf", out.Filename)

	assert.Equal(t, "cover.png", r.doc.CoverImage)
	assert.Equal(t, "spread.jpg", r.doc.SpreadImage)
	assert.Equal(t, "single.gif", r.doc.SingleImage)
	assert.Empty(t, r.doc.Timeline[0].Image)

	assert.Equal(t, []byte("png-bytes"), r.staged["cover.png"])
	assert.Equal(t, []byte("stored-jpeg"), r.staged["spread.jpg"])
	assert.Equal(t, []byte("gif-bytes"), r.staged["single.gif"])

	_, err = os.Stat(r.workDir)
	assert.True(t, os.IsNotExist(err), "scratch dir must be removed")

	// The session snapshot passed in is left untouched.
	assert.Equal(t, local, s.Data.SingleImageURL)
}

func TestOrchestrator_RendererFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("exit status 1")}
	o := NewOrchestrator(r, nil, nil, WithScratchDir(t.TempDir()))

	out, err := o.Render(context.Background(), bareSession(), VariantCover)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "render", rerr.Op)
	assert.False(t, rerr.Timeout)
	assert.Equal(t, domain.FlowQuick, rerr.Flow)

	_, statErr := os.Stat(r.workDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestrator_EmptyOutputFails(t *testing.T) {
	o := NewOrchestrator(&fakeRenderer{}, nil, nil, WithScratchDir(t.TempDir()))
	_, err := o.Render(context.Background(), bareSession(), VariantCover)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
}

func TestOrchestrator_Timeout(t *testing.T) {
	r := &fakeRenderer{block: true}
	o := NewOrchestrator(r, nil, nil, WithScratchDir(t.TempDir()), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := o.Render(context.Background(), bareSession(), VariantCover)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.True(t, rerr.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_ConcurrentRendersUseSeparateDirs(t *testing.T) {
	scratch := t.TempDir()
	r1 := &fakeRenderer{pdf: []byte("a")}
	r2 := &fakeRenderer{pdf: []byte("b")}
	o1 := NewOrchestrator(r1, nil, nil, WithScratchDir(scratch))
	o2 := NewOrchestrator(r2, nil, nil, WithScratchDir(scratch))

	done := make(chan error, 2)
	go func() { _, err := o1.Render(context.Background(), bareSession(), VariantCover); done <- err }()
	go func() { _, err := o2.Render(context.Background(), bareSession(), VariantCover); done <- err }()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.NotEqual(t, r1.workDir, r2.workDir)
	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg; charset=binary"))
	assert.Equal(t, ".gif", extensionFor("image/gif"))
	assert.Equal(t, ".jpg", extensionFor("application/octet-stream"))
}
