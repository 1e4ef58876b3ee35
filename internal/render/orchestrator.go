package render

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

// Renderer builds a PDF from a document whose images are staged in workDir.
type Renderer interface {
	Render(ctx context.Context, workDir string, doc *Document) ([]byte, error)
}

type Output struct {
	PDF      []byte
	Filename string
	Pages    int
}

type Orchestrator struct {
	renderer   Renderer
	files      FileSource
	registry   *schema.Registry
	scratchDir string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Orchestrator)

// WithScratchDir sets the parent of per-render scratch directories.
func WithScratchDir(dir string) Option {
	return func(o *Orchestrator) { o.scratchDir = dir }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(renderer Renderer, files FileSource, registry *schema.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		renderer:   renderer,
		files:      files,
		registry:   registry,
		timeout:    60 * time.Second,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Render produces the PDF for a session snapshot. It either returns the
// complete bytes or an *Error; the scratch directory is removed either way.
func (o *Orchestrator) Render(ctx context.Context, s *domain.Session, v Variant) (*Output, error) {
	fail := func(op string, err error) error {
		return &Error{Flow: s.Flow, SessionID: s.ID, Op: op, Err: err}
	}

	doc, err := Build(s, v, o.registry, o.now())
	if err != nil {
		return nil, fail("build", err)
	}

	dir, err := os.MkdirTemp(o.scratchDir, "render-"+string(s.Flow)+"-*")
	if err != nil {
		return nil, fail("scratch", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("remove render scratch dir", "dir", dir, "error", err)
		}
	}()

	o.stageImages(ctx, dir, doc)

	timeout := o.timeout
	if doc.timeoutFactor > 0 {
		timeout = time.Duration(float64(timeout) * doc.timeoutFactor)
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	pdf, err := o.renderer.Render(rctx, dir, doc)
	if err != nil {
		timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
		return nil, &Error{Flow: s.Flow, SessionID: s.ID, Op: "render", Timeout: timedOut, Err: err}
	}
	if len(pdf) == 0 {
		return nil, fail("render", errors.New("renderer produced no output"))
	}

	out := &Output{
		PDF:      pdf,
		Filename: doc.Filename(o.now()),
		Pages:    doc.PageCount(),
	}
	slog.Info("document rendered",
		"flow", s.Flow,
		"session_id", s.ID,
		"variant", v.String(),
		"template", doc.Template,
		"bytes", len(pdf),
		"duration", time.Since(start),
	)
	return out, nil
}
