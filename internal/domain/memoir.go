package domain

import "strings"

// ProfileEdit carries a partial profile update; nil fields are left untouched.
type ProfileEdit struct {
	Name         *string   `json:"name,omitempty"`
	BirthDate    *string   `json:"birth_date,omitempty"`
	BirthPlace   *string   `json:"birth_place,omitempty"`
	Occupation   *string   `json:"occupation,omitempty"`
	Hobbies      *[]string `json:"hobbies,omitempty"`
	Introduction *string   `json:"introduction,omitempty"`
}

// TimelineEdit is one incoming timeline entry. A nil Image means the
// client did not send the field at all.
type TimelineEdit struct {
	Year        int      `json:"year"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Image       *string  `json:"image,omitempty"`
}

// MemoirEdit is a structured edit submitted from the edit page.
type MemoirEdit struct {
	Title    *string         `json:"title,omitempty"`
	Subtitle *string         `json:"subtitle,omitempty"`
	Author   *string         `json:"author,omitempty"`
	Template *string         `json:"template,omitempty"`
	Profile  *ProfileEdit    `json:"profile,omitempty"`
	Timeline *[]TimelineEdit `json:"timeline,omitempty"`
}

// Apply merges e into d.
func (d *MemoirData) Apply(e MemoirEdit) {
	if e.Title != nil {
		d.Title = *e.Title
	}
	if e.Subtitle != nil {
		d.Subtitle = *e.Subtitle
	}
	if e.Author != nil {
		d.Author = *e.Author
	}
	if e.Template != nil {
		d.Template = *e.Template
	}
	if p := e.Profile; p != nil {
		setIf(&d.Profile.Name, p.Name)
		setIf(&d.Profile.BirthDate, p.BirthDate)
		setIf(&d.Profile.BirthPlace, p.BirthPlace)
		setIf(&d.Profile.Occupation, p.Occupation)
		setIf(&d.Profile.Introduction, p.Introduction)
		if p.Hobbies != nil {
			d.Profile.Hobbies = append([]string(nil), (*p.Hobbies)...)
		}
	}
	if e.Timeline != nil {
		d.Timeline = MergeTimeline(d.Timeline, *e.Timeline)
	}
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// MergeTimeline replaces existing with incoming, keeping the stored image
// of the same year for every incoming entry that omits the image field.
func MergeTimeline(existing []TimelineEntry, incoming []TimelineEdit) []TimelineEntry {
	images := make(map[int]string, len(existing))
	for _, e := range existing {
		if e.Image != "" {
			images[e.Year] = e.Image
		}
	}

	out := make([]TimelineEntry, 0, len(incoming))
	for _, in := range incoming {
		entry := TimelineEntry{
			Year:        in.Year,
			Title:       in.Title,
			Description: in.Description,
			Tags:        append([]string(nil), in.Tags...),
		}
		if in.Image != nil {
			entry.Image = *in.Image
		} else {
			entry.Image = images[in.Year]
		}
		out = append(out, entry)
	}
	return out
}

// SplitList splits comma separated input, accepting both ASCII and
// full-width commas, and drops empty items.
func SplitList(s string) []string {
	s = strings.ReplaceAll(s, "、", ",")
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
