package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sample is a PDF shipped in the samples directory.
type Sample struct {
	Name string
	Size int64
	URL  string
}

// SampleDir lists the sample PDFs served under /samples/.
type SampleDir struct {
	dir     string
	baseURL string
}

func NewSampleDir(dir, baseURL string) *SampleDir {
	return &SampleDir{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *SampleDir) Dir() string { return d.dir }

// List returns the samples sorted by name. A missing directory is reported
// as an error matching fs.ErrNotExist.
func (d *SampleDir) List() ([]Sample, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read samples dir: %w", err)
	}

	var out []Sample
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat sample %s: %w", e.Name(), err)
		}
		out = append(out, Sample{
			Name: e.Name(),
			Size: info.Size(),
			URL:  d.baseURL + "/samples/" + url.PathEscape(e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
