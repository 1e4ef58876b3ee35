package domain

import (
	"maps"
	"slices"
	"time"
)

// FlowType names one of the conversational flows.
type FlowType string

const (
	FlowQuick   FlowType = "quick"
	FlowPhoto   FlowType = "photo"
	FlowMedia   FlowType = "media"
	FlowProfile FlowType = "profile"
)

// State is a flow state name. Each flow uses its own subset.
type State string

const (
	// Quick-Cover
	StateWaitingTitle       State = "waiting_title"
	StateWaitingCover       State = "waiting_cover"
	StateWaitingSpreadImage State = "waiting_spread_image"
	StateWaitingSingleImage State = "waiting_single_image"

	// Photo-Story
	StateCollectingPhotos State = "collecting_photos"
	StateQuestioning      State = "questioning"
	StateStoryGenerated   State = "story_generated"

	// Media-Template
	StateCollecting State = "collecting"

	// Profile+Timeline
	StateCollectingProfile  State = "collecting_profile"
	StateCollectingTimeline State = "collecting_timeline"
	StateConfirming         State = "confirming"
	StateGenerating         State = "generating"

	// Shared
	StateEditing   State = "editing"
	StateCompleted State = "completed"
)

type OwnerType string

const (
	OwnerNone  OwnerType = ""
	OwnerUser  OwnerType = "user"
	OwnerGroup OwnerType = "group"
)

// Owner scopes access to stored files.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   string    `json:"owner_id"`
}

func UserOwner(userID string) Owner   { return Owner{Type: OwnerUser, ID: userID} }
func GroupOwner(groupID string) Owner { return Owner{Type: OwnerGroup, ID: groupID} }

func (o Owner) IsZero() bool { return o.Type == OwnerNone || o.ID == "" }

// Session is the per-user conversational state of one flow.
// Only the fields relevant to the session's flow are populated.
type Session struct {
	ID     string   `json:"session_id"`
	Flow   FlowType `json:"flow"`
	UserID string   `json:"user_id"`
	ChatID string   `json:"chat_id"`
	Owner  Owner    `json:"owner"`
	State  State    `json:"state"`

	// Quick-Cover and Profile+Timeline
	Data MemoirData `json:"data"`
	Step int        `json:"step,omitempty"`

	// Photo-Story
	Photos       []PhotoItem `json:"photos,omitempty"`
	CurrentPhoto int         `json:"current_photo_index"`

	// Media-Template
	TemplateID string     `json:"template_id,omitempty"`
	FieldIndex int        `json:"current_field_index"`
	Pages      []PageData `json:"pages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch records an accepted transition.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// Current returns the photo under discussion, or nil.
func (s *Session) Current() *PhotoItem {
	if s.CurrentPhoto < 0 || s.CurrentPhoto >= len(s.Photos) {
		return nil
	}
	return &s.Photos[s.CurrentPhoto]
}

// Page returns the page data bag for pageID, or nil.
func (s *Session) Page(pageID string) *PageData {
	for i := range s.Pages {
		if s.Pages[i].PageID == pageID {
			return &s.Pages[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	c := *s
	c.Data = s.Data.clone()
	if s.Photos != nil {
		c.Photos = make([]PhotoItem, len(s.Photos))
		for i, p := range s.Photos {
			p.Answers = slices.Clone(p.Answers)
			c.Photos[i] = p
		}
	}
	if s.Pages != nil {
		c.Pages = make([]PageData, len(s.Pages))
		for i, p := range s.Pages {
			c.Pages[i] = PageData{PageID: p.PageID, PageType: p.PageType, Data: cloneBag(p.Data)}
		}
	}
	return &c
}

type MemoirData struct {
	Title          string          `json:"title"`
	Subtitle       string          `json:"subtitle"`
	Author         string          `json:"author"`
	Date           string          `json:"date,omitempty"`
	Template       string          `json:"template,omitempty"`
	CoverImageURL  string          `json:"cover_image_url,omitempty"`
	SpreadImageURL string          `json:"spread_image_url,omitempty"`
	SingleImageURL string          `json:"single_image_url,omitempty"`
	Profile        Profile         `json:"profile"`
	Timeline       []TimelineEntry `json:"timeline"`
	StartYear      int             `json:"start_year,omitempty"`
}

func (d MemoirData) clone() MemoirData {
	d.Profile.Hobbies = slices.Clone(d.Profile.Hobbies)
	if d.Timeline != nil {
		tl := make([]TimelineEntry, len(d.Timeline))
		for i, e := range d.Timeline {
			e.Tags = slices.Clone(e.Tags)
			tl[i] = e
		}
		d.Timeline = tl
	}
	return d
}

type Profile struct {
	Name         string   `json:"name"`
	BirthDate    string   `json:"birth_date"`
	BirthPlace   string   `json:"birth_place"`
	Occupation   string   `json:"occupation"`
	Hobbies      []string `json:"hobbies"`
	Introduction string   `json:"introduction,omitempty"`
}

type TimelineEntry struct {
	Year        int      `json:"year"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Image       string   `json:"image,omitempty"`
}

type PhotoItem struct {
	ID            string    `json:"photo_id"`
	ImageURL      string    `json:"image_url"`
	Answers       []string  `json:"answers"`
	QuestionIndex int       `json:"current_question_index"`
	Story         string    `json:"generated_story,omitempty"`
	Approved      bool      `json:"story_approved"`
	EstimatedDate string    `json:"estimated_date,omitempty"`
	Location      string    `json:"estimated_location,omitempty"`
	AddedAt       time.Time `json:"added_at"`
}

// PageData is the value bag collected for one template page.
// Values are strings, except list fields which hold []string.
type PageData struct {
	PageID   string         `json:"page_id"`
	PageType string         `json:"page_type"`
	Data     map[string]any `json:"data"`
}

func cloneBag(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := maps.Clone(in)
	for k, v := range out {
		if list, ok := v.([]string); ok {
			out[k] = slices.Clone(list)
		}
	}
	return out
}
