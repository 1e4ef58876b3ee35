// Package schema declares the page and field layout of media templates.
package schema

import (
	"fmt"
	"sort"

	"github.com/set-night/memoirbot/internal/domain"
)

type PageType string

const (
	PageTitle           PageType = "title"
	PageSpreadFullImage PageType = "spread_full_image"
	PageSingleImageText PageType = "single_image_text"
	PageSpreadImageText PageType = "spread_image_text"
	PageSingleTextOnly  PageType = "single_text_only"
)

type WritingMode string

const (
	Vertical   WritingMode = "vertical"
	Horizontal WritingMode = "horizontal"
)

type FieldKind string

const (
	KindText  FieldKind = "text"
	KindImage FieldKind = "image"
	KindList  FieldKind = "list"
)

type Field struct {
	Name        string    `json:"field_name"`
	Kind        FieldKind `json:"field_type"`
	Required    bool      `json:"required"`
	MaxLength   int       `json:"max_length,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Description string    `json:"description"`
}

type Page struct {
	ID           string   `json:"page_id"`
	Type         PageType `json:"page_type"`
	Number       int      `json:"page_number"`
	DisplayName  string   `json:"display_name"`
	Description  string   `json:"description"`
	TemplatePath string   `json:"template_path"`
	Deletable    bool     `json:"is_deletable"`
	Duplicatable bool     `json:"is_duplicatable"`
	Fields       []Field  `json:"fields"`
}

type Template struct {
	ID          string      `json:"template_id"`
	Name        string      `json:"template_name"`
	WritingMode WritingMode `json:"writing_mode"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Pages       []Page      `json:"pages"`
}

// Slot is one (page, field) pair in flat schema order.
type Slot struct {
	Index int
	Page  Page
	Field Field
}

// Page returns the page with the given id.
func (t *Template) Page(id string) (Page, bool) {
	for _, p := range t.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}

// FieldCount is the number of fields over all pages.
func (t *Template) FieldCount() int {
	n := 0
	for _, p := range t.Pages {
		n += len(p.Fields)
	}
	return n
}

// SlotAt resolves a flat running index into its page and field.
func (t *Template) SlotAt(index int) (Slot, bool) {
	if index < 0 {
		return Slot{}, false
	}
	i := 0
	for _, p := range t.Pages {
		for _, f := range p.Fields {
			if i == index {
				return Slot{Index: index, Page: p, Field: f}, true
			}
			i++
		}
	}
	return Slot{}, false
}

// RequiredImages lists the required image slots in schema order.
func (t *Template) RequiredImages() []Slot {
	var out []Slot
	i := 0
	for _, p := range t.Pages {
		for _, f := range p.Fields {
			if f.Kind == KindImage && f.Required {
				out = append(out, Slot{Index: i, Page: p, Field: f})
			}
			i++
		}
	}
	return out
}

// EmptyPages builds one empty data bag per page.
func (t *Template) EmptyPages() []domain.PageData {
	pages := make([]domain.PageData, 0, len(t.Pages))
	for _, p := range t.Pages {
		pages = append(pages, domain.PageData{
			PageID:   p.ID,
			PageType: string(p.Type),
			Data:     map[string]any{},
		})
	}
	return pages
}

// Summary is the listing view of a template.
type Summary struct {
	ID          string `json:"template_id"`
	Name        string `json:"template_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Registry is a read-only set of templates.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry validates and indexes templates. Duplicate template ids,
// duplicate page ids and unknown field kinds are rejected.
func NewRegistry(templates ...*Template) (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if _, dup := r.templates[t.ID]; dup {
			return nil, fmt.Errorf("template %s: duplicate id", t.ID)
		}
		pages := make(map[string]struct{}, len(t.Pages))
		for _, p := range t.Pages {
			if _, dup := pages[p.ID]; dup {
				return nil, fmt.Errorf("template %s: duplicate page %s", t.ID, p.ID)
			}
			pages[p.ID] = struct{}{}
			for _, f := range p.Fields {
				switch f.Kind {
				case KindText, KindImage, KindList:
				default:
					return nil, fmt.Errorf("template %s page %s field %s: unknown kind %q", t.ID, p.ID, f.Name, f.Kind)
				}
			}
		}
		r.templates[t.ID] = t
	}
	return r, nil
}

// Default returns the registry of built-in templates.
func Default() *Registry {
	r, err := NewRegistry(MemoirVertical())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(id string) (*Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, domain.ErrTemplateNotFound)
	}
	return t, nil
}

func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, Summary{ID: t.ID, Name: t.Name, Description: t.Description, Category: t.Category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
