// Package render turns session data into PDF documents.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

// Variant selects how much of a session is rendered.
type Variant int

const (
	VariantFull Variant = iota
	VariantCover
)

func (v Variant) String() string {
	if v == VariantCover {
		return "cover"
	}
	return "full"
}

// Template names understood by the document renderer.
const (
	TemplateMemoir      = "memoir"
	TemplateMemoirCover = "memoir-cover"
	TemplatePhotoMemoir = "photo-memoir"
	TemplateMedia       = "media"
)

const (
	photoAlbumTitle      = "思い出のアルバム"
	photoAlbumAuthor     = "あなた"
	photoStoryMissing    = "（ストーリー未生成）"
	defaultMediaTitle    = "自分史"
	defaultTimelineDescf = "%d年に起こった重要な出来事です。"
)

// Document is the page tree handed to a Renderer. Image fields hold a
// reference before staging and a scratch-relative filename after it; an
// empty string means no image.
type Document struct {
	Template    string
	WritingMode schema.WritingMode

	Title    string
	Subtitle string
	Author   string
	Date     string

	CoverImage  string
	SpreadImage string
	SingleImage string

	Profile  *ProfileBlock
	Timeline []TimelineItem
	Photos   []PhotoPage
	Pages    []MediaPage

	// filename parts
	prefix string
	name   string

	timeoutFactor float64
}

type ProfileBlock struct {
	Name         string
	BirthDate    string
	BirthPlace   string
	Occupation   string
	Hobbies      []string
	Introduction string
}

type TimelineItem struct {
	Year        int
	Title       string
	Description string
	Tags        []string
	Image       string
}

type PhotoPage struct {
	Number   int
	Image    string
	Story    string
	Date     string
	Location string
}

type MediaPage struct {
	ID          string
	Type        schema.PageType
	Number      int
	DisplayName string
	Texts       []MediaText
	Images      []MediaImage
}

type MediaText struct {
	Field string
	Value string
}

type MediaImage struct {
	Field string
	Src   string
}

// Text returns the value of a text field, or "".
func (p MediaPage) Text(field string) string {
	for _, t := range p.Texts {
		if t.Field == field {
			return t.Value
		}
	}
	return ""
}

func (d *Document) Vertical() bool { return d.WritingMode == schema.Vertical }

// PageCount is the number of content pages, cover included.
func (d *Document) PageCount() int {
	switch d.Template {
	case TemplateMemoirCover:
		return 1
	case TemplatePhotoMemoir:
		return 1 + len(d.Photos)
	case TemplateMedia:
		return len(d.Pages)
	default:
		n := 1
		if d.SpreadImage != "" {
			n += 2
		}
		if d.SingleImage != "" {
			n++
		}
		if d.Profile != nil {
			n++
		}
		if len(d.Timeline) > 0 {
			n++
		}
		return n
	}
}

// imageRef names one image slot of the document for staging.
type imageRef struct {
	name string
	src  *string
}

func (d *Document) imageRefs() []imageRef {
	var refs []imageRef
	add := func(name string, src *string) {
		if strings.TrimSpace(*src) != "" {
			refs = append(refs, imageRef{name: name, src: src})
		}
	}
	add("cover", &d.CoverImage)
	add("spread", &d.SpreadImage)
	add("single", &d.SingleImage)
	for i := range d.Timeline {
		add(fmt.Sprintf("timeline_%d", i), &d.Timeline[i].Image)
	}
	for i := range d.Photos {
		add(fmt.Sprintf("photo_%d", i+1), &d.Photos[i].Image)
	}
	for i := range d.Pages {
		for j := range d.Pages[i].Images {
			add(fmt.Sprintf("page_%s_%s", d.Pages[i].ID, d.Pages[i].Images[j].Field), &d.Pages[i].Images[j].Src)
		}
	}
	return refs
}

// Filename builds "<prefix>_<name>_<timestamp>.pdf", dropping the name
// part when it sanitizes to nothing.
func (d *Document) Filename(now time.Time) string {
	ts := now.Format(config.FilenameTimeLayout)
	name := sanitizeName(d.name, 20)
	if name == "" {
		return fmt.Sprintf("%s_%s.pdf", d.prefix, ts)
	}
	return fmt.Sprintf("%s_%s_%s.pdf", d.prefix, name, ts)
}

func sanitizeName(s string, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
			n++
		}
	}
	return strings.TrimSpace(b.String())
}

// Build assembles the document for a session snapshot.
func Build(s *domain.Session, v Variant, registry *schema.Registry, now time.Time) (*Document, error) {
	switch s.Flow {
	case domain.FlowQuick:
		if v == VariantCover {
			return buildCover(s, now), nil
		}
		return buildMemoir(s, now), nil
	case domain.FlowProfile:
		return buildMemoir(s, now), nil
	case domain.FlowPhoto:
		return buildPhoto(s, now), nil
	case domain.FlowMedia:
		return buildMedia(s, registry)
	default:
		return nil, fmt.Errorf("build document for flow %q: %w", s.Flow, domain.ErrInvalidInput)
	}
}

func coverDate(d domain.MemoirData, now time.Time) string {
	if d.Date != "" {
		return d.Date
	}
	return now.Format(config.CoverDateLayout)
}

func buildCover(s *domain.Session, now time.Time) *Document {
	d := s.Data
	return &Document{
		Template:      TemplateMemoirCover,
		WritingMode:   schema.Vertical,
		Title:         d.Title,
		Subtitle:      d.Subtitle,
		Author:        d.Author,
		Date:          coverDate(d, now),
		CoverImage:    d.CoverImageURL,
		prefix:        "memoir",
		name:          d.Title,
		timeoutFactor: 1,
	}
}

func buildMemoir(s *domain.Session, now time.Time) *Document {
	d := s.Data
	doc := &Document{
		Template:      TemplateMemoir,
		WritingMode:   schema.Vertical,
		Title:         d.Title,
		Subtitle:      d.Subtitle,
		Author:        d.Author,
		Date:          coverDate(d, now),
		CoverImage:    d.CoverImageURL,
		SpreadImage:   d.SpreadImageURL,
		SingleImage:   d.SingleImageURL,
		prefix:        "memoir",
		name:          d.Title,
		timeoutFactor: config.MemoirTimeoutFactor,
	}

	p := d.Profile
	if p.Name != "" || p.BirthDate != "" || p.BirthPlace != "" || p.Occupation != "" || len(p.Hobbies) > 0 || p.Introduction != "" {
		name := p.Name
		if name == "" {
			name = d.Author
		}
		doc.Profile = &ProfileBlock{
			Name:         name,
			BirthDate:    p.BirthDate,
			BirthPlace:   p.BirthPlace,
			Occupation:   p.Occupation,
			Hobbies:      append([]string(nil), p.Hobbies...),
			Introduction: p.Introduction,
		}
	}

	for _, e := range d.Timeline {
		desc := strings.TrimSpace(e.Description)
		if desc == "" && s.Flow == domain.FlowProfile {
			desc = fmt.Sprintf(defaultTimelineDescf, e.Year)
		}
		doc.Timeline = append(doc.Timeline, TimelineItem{
			Year:        e.Year,
			Title:       e.Title,
			Description: desc,
			Tags:        append([]string(nil), e.Tags...),
			Image:       e.Image,
		})
	}
	return doc
}

func buildPhoto(s *domain.Session, now time.Time) *Document {
	doc := &Document{
		Template:      TemplatePhotoMemoir,
		WritingMode:   schema.Horizontal,
		Title:         photoAlbumTitle,
		Author:        photoAlbumAuthor,
		Date:          now.Format(config.CoverDateLayout),
		prefix:        "photo_memoir",
		name:          truncate(s.UserID, 8),
		timeoutFactor: config.PhotoTimeoutFactor,
	}
	for i, p := range s.Photos {
		story := p.Story
		if story == "" {
			story = photoStoryMissing
		}
		doc.Photos = append(doc.Photos, PhotoPage{
			Number:   i + 1,
			Image:    p.ImageURL,
			Story:    story,
			Date:     p.EstimatedDate,
			Location: p.Location,
		})
	}
	return doc
}

func buildMedia(s *domain.Session, registry *schema.Registry) (*Document, error) {
	if registry == nil {
		return nil, fmt.Errorf("build media document: %w", domain.ErrTemplateNotFound)
	}
	tpl, err := registry.Get(s.TemplateID)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Template:      TemplateMedia,
		WritingMode:   tpl.WritingMode,
		Title:         defaultMediaTitle,
		prefix:        tpl.ID,
		timeoutFactor: config.MemoirTimeoutFactor,
	}

	for _, page := range tpl.Pages {
		var bag map[string]any
		if pd := s.Page(page.ID); pd != nil {
			bag = pd.Data
		}
		mp := MediaPage{
			ID:          page.ID,
			Type:        page.Type,
			Number:      page.Number,
			DisplayName: page.DisplayName,
		}
		for _, f := range page.Fields {
			v := bag[f.Name]
			switch f.Kind {
			case schema.KindImage:
				src, _ := v.(string)
				mp.Images = append(mp.Images, MediaImage{Field: f.Name, Src: src})
			case schema.KindList:
				mp.Texts = append(mp.Texts, MediaText{Field: f.Name, Value: listValue(v)})
			default:
				str, _ := v.(string)
				mp.Texts = append(mp.Texts, MediaText{Field: f.Name, Value: str})
			}
		}
		if page.Type == schema.PageTitle {
			if title := mp.Text("title"); title != "" {
				doc.Title = title
			}
			if author := mp.Text("author"); author != "" {
				doc.Author = author
			}
		}
		doc.Pages = append(doc.Pages, mp)
	}
	return doc, nil
}

func listValue(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, "、")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "、")
	case string:
		return t
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
