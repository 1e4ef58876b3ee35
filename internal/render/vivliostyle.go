package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	inputFile  = "index.html"
	outputFile = "output.pdf"
	stderrTail = 2000
)

// Vivliostyle renders documents with the vivliostyle CLI.
type Vivliostyle struct {
	bin       string
	size      string
	cropMarks bool
	bleed     string
	tmpl      *template.Template
}

type VivliostyleOption func(*Vivliostyle)

func WithPageSize(size string) VivliostyleOption {
	return func(v *Vivliostyle) {
		if size != "" {
			v.size = size
		}
	}
}

func WithCropMarks(on bool) VivliostyleOption {
	return func(v *Vivliostyle) { v.cropMarks = on }
}

// WithBleed sets the bleed width, e.g. "3mm".
func WithBleed(bleed string) VivliostyleOption {
	return func(v *Vivliostyle) { v.bleed = bleed }
}

func NewVivliostyle(bin string, opts ...VivliostyleOption) (*Vivliostyle, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	if bin == "" {
		bin = "vivliostyle"
	}
	v := &Vivliostyle{bin: bin, size: "A4", tmpl: tmpl}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vivliostyle) Render(ctx context.Context, workDir string, doc *Document) ([]byte, error) {
	html, err := v.HTML(doc)
	if err != nil {
		return nil, err
	}
	html, err = pruneImages(html, workDir)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(workDir, inputFile), []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", inputFile, err)
	}

	args := v.args()
	cmd := exec.CommandContext(ctx, v.bin, args...)
	cmd.Dir = workDir
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running vivliostyle", "bin", v.bin, "args", args, "dir", workDir)
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("vivliostyle: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("vivliostyle exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String(), stderrTail))
		}
		return nil, fmt.Errorf("run vivliostyle: %w", err)
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		slog.Warn("vivliostyle stderr", "output", tail(s, stderrTail))
	}

	pdf, err := os.ReadFile(filepath.Join(workDir, outputFile))
	if err != nil {
		return nil, fmt.Errorf("pdf was not produced: %w (stdout: %s)", err, tail(stdout.String(), stderrTail))
	}
	return pdf, nil
}

// HTML executes the document's template.
func (v *Vivliostyle) HTML(doc *Document) (string, error) {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, doc.Template+".html", doc); err != nil {
		return "", fmt.Errorf("execute template %s: %w", doc.Template, err)
	}
	return buf.String(), nil
}

func (v *Vivliostyle) args() []string {
	args := []string{
		"build", inputFile,
		"--output", outputFile,
		"--format", "pdf",
		"--size", v.size,
		"--single-doc",
	}
	if v.cropMarks {
		args = append(args, "--crop-marks")
	}
	if v.bleed != "" {
		args = append(args, "--bleed", v.bleed)
	}
	return args
}

// pruneImages removes <img> elements whose source is empty or missing from
// the scratch dir, along with a wrapping <figure> left without an image.
func pruneImages(html, workDir string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse rendered html: %w", err)
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src != "" && (strings.Contains(src, "://") || strings.HasPrefix(src, "data:")) {
			return
		}
		if src != "" {
			if _, err := os.Stat(filepath.Join(workDir, filepath.FromSlash(src))); err == nil {
				return
			}
		}
		fig := sel.ParentsFiltered("figure").First()
		sel.Remove()
		if fig.Length() > 0 && fig.Find("img").Length() == 0 {
			fig.Remove()
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize html: %w", err)
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
