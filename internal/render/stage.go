package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/storage"
)

// FileSource resolves object store references during staging.
type FileSource interface {
	GetByID(ctx context.Context, fileID string, req domain.Requester) (domain.FileMeta, error)
	Open(ctx context.Context, meta domain.FileMeta) (io.ReadCloser, error)
}

// stageImages copies every image the document references into dir and
// rewrites the reference to the local filename. Images that cannot be
// resolved are dropped so the render can go on without them.
func (o *Orchestrator) stageImages(ctx context.Context, dir string, doc *Document) {
	refs := doc.imageRefs()
	if len(refs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.ImageStagingLimit)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			name, err := o.stageImage(gctx, dir, ref.name, *ref.src)
			if err != nil {
				slog.Warn("image dropped from render", "image", ref.name, "src", *ref.src, "error", err)
				*ref.src = ""
				return nil
			}
			*ref.src = name
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) stageImage(ctx context.Context, dir, name, src string) (string, error) {
	src = strings.TrimSpace(src)

	if fileID, ok := storage.FileIDFromURL(src); ok && o.files != nil {
		staged, err := o.copyFromStore(ctx, dir, name, fileID)
		if err == nil {
			return staged, nil
		}
		if !isRemote(src) {
			return "", err
		}
		slog.Debug("object store lookup failed, downloading", "file_id", fileID, "error", err)
	}

	if isRemote(src) {
		return o.download(ctx, dir, name, src)
	}
	return copyLocal(dir, name, src)
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (o *Orchestrator) copyFromStore(ctx context.Context, dir, name, fileID string) (string, error) {
	meta, err := o.files.GetByID(ctx, fileID, domain.Requester{})
	if err != nil {
		return "", err
	}
	rc, err := o.files.Open(ctx, meta)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	ext := filepath.Ext(meta.StoredFilename)
	if ext == "" {
		ext = extensionFor(meta.ContentType)
	}
	return writeStaged(dir, name+ext, rc)
}

func (o *Orchestrator) download(ctx context.Context, dir, name, src string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ImageDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	return writeStaged(dir, name+extensionFor(resp.Header.Get("Content-Type")), resp.Body)
}

func copyLocal(dir, name, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open local image: %w", err)
	}
	defer f.Close()
	return writeStaged(dir, name+filepath.Ext(src), f)
}

func writeStaged(dir, filename string, r io.Reader) (string, error) {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", fmt.Errorf("create staged image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write staged image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged image: %w", err)
	}
	return filename, nil
}

// extensionFor maps an image content type to a file extension, falling back
// to .jpg.
func extensionFor(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
