package render

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
)

// fakeCLI writes an executable shell script standing in for vivliostyle.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "vivliostyle")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const writesOutput = `echo "$@" > args.txt
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then out="$2"; fi
  shift
done
printf '%s' 'PDF-FAKE' > "$out"`

func TestVivliostyle_Render(t *testing.T) {
	bin := fakeCLI(t, writesOutput)
	v, err := NewVivliostyle(bin, WithCropMarks(true), WithBleed("3mm"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("img"), 0o644))

	doc, err := Build(quickSession(), VariantFull, nil, testNow)
	require.NoError(t, err)
	doc.CoverImage = "cover.jpg"
	doc.SpreadImage = ""
	doc.SingleImage = "single.jpg"

	pdf, err := v.Render(context.Background(), dir, doc)
	require.NoError(t, err)
	assert.Equal(t, []byte("PDF-FAKE"), pdf)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "build index.html --output output.pdf --format pdf --size A4 --single-doc --crop-marks --bleed 3mm",
		strings.TrimSpace(string(args)))

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `src="cover.jpg"`)
	assert.NotContains(t, string(html), "single.jpg", "unstaged image must be pruned")
	assert.Contains(t, string(html), "私の人生")
}

func TestVivliostyle_NonZeroExit(t *testing.T) {
	bin := fakeCLI(t, `echo "font not found" >&2; exit 3`)
	v, err := NewVivliostyle(bin)
	require.NoError(t, err)

	_, err = v.Render(context.Background(), t.TempDir(), &Document{Template: TemplateMemoirCover, Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "font not found")
}

func TestVivliostyle_MissingOutput(t *testing.T) {
	bin := fakeCLI(t, `exit 0`)
	v, err := NewVivliostyle(bin)
	require.NoError(t, err)

	_, err = v.Render(context.Background(), t.TempDir(), &Document{Template: TemplateMemoirCover, Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf was not produced")
}

func TestVivliostyle_TimeoutThroughOrchestrator(t *testing.T) {
	bin := fakeCLI(t, `exec sleep 5`)
	v, err := NewVivliostyle(bin)
	require.NoError(t, err)

	o := NewOrchestrator(v, nil, nil, WithScratchDir(t.TempDir()), WithTimeout(100*time.Millisecond))
	start := time.Now()
	_, err = o.Render(context.Background(), bareSession(), VariantCover)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
	assert.Less(t, time.Since(start), 4*time.Second)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Timeout)
}

func TestVivliostyle_Templates(t *testing.T) {
	v, err := NewVivliostyle("vivliostyle")
	require.NoError(t, err)

	for _, name := range []string{TemplateMemoir, TemplateMemoirCover, TemplatePhotoMemoir, TemplateMedia} {
		t.Run(name, func(t *testing.T) {
			html, err := v.HTML(&Document{
				Template: name,
				Title:    "タイトル",
				Photos:   []PhotoPage{{Number: 1, Image: "photo_1.jpg", Story: "物語"}},
				Pages:    []MediaPage{{ID: "p1", Texts: []MediaText{{Field: "title", Value: "見出し"}}}},
			})
			require.NoError(t, err)
			assert.Contains(t, html, "タイトル")
		})
	}
}

func TestPruneImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.png"), []byte("x"), 0o644))

	in := `<html><body>
<figure class="a"><img src="ok.png"></figure>
<figure class="b"><img src=""></figure>
<figure class="c"><img src="gone.png"><figcaption>c</figcaption></figure>
<img src="https://cdn.example.com/x.png">
</body></html>`

	out, err := pruneImages(in, dir)
	require.NoError(t, err)
	assert.Contains(t, out, `src="ok.png"`)
	assert.NotContains(t, out, `class="b"`)
	assert.NotContains(t, out, "gone.png")
	assert.NotContains(t, out, `class="c"`)
	assert.Contains(t, out, "cdn.example.com")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("  abc\n", 5))
	assert.Equal(t, "def", tail("abcdef", 3))

	got := tail("レンダリングエラー発生", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "生", got)
}
