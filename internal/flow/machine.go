// Package flow implements the guided conversations that collect memoir data.
//
// Every flow is a finite state machine over a domain.Session. Transitions are
// declared in a table keyed by (state, input kind); combinations missing from
// the table never mutate the session and answer with a corrective prompt.
package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/memoirbot/internal/domain"
)

type InputKind uint8

const (
	InputText InputKind = iota + 1
	InputImage
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputImage:
		return "image"
	default:
		return "unknown"
	}
}

// Input is one user message. Image holds an object store URL.
type Input struct {
	Kind  InputKind
	Text  string
	Image string
}

func Text(s string) Input { return Input{Kind: InputText, Text: s} }
func Image(url string) Input { return Input{Kind: InputImage, Image: url} }
func (in Input) trimmed() string { return strings.TrimSpace(in.Text) }

// Effect is a side effect the caller must run after a transition.
type Effect uint8

const (
	EffectNone Effect = iota
	// EffectRenderCover renders the cover page only.
	EffectRenderCover
	EffectRender
	// EffectGenerateStory asks for a story for the current photo; the result
	// is attached with Photo.AttachStory.
	EffectGenerateStory
	// EffectCancel removes the session.
	EffectCancel
)

func (e Effect) String() string {
	switch e {
	case EffectRenderCover:
		return "render_cover"
	case EffectRender:
		return "render"
	case EffectGenerateStory:
		return "generate_story"
	case EffectCancel:
		return "cancel"
	default:
		return "none"
	}
}

// Result is the outcome of one transition.
type Result struct {
	Reply    string
	Effect   Effect
	Accepted bool
}

func reject(reply string) Result { return Result{Reply: reply} }

func accept(reply string) Result { return Result{Reply: reply, Accepted: true} }

func acceptWith(reply string, effect Effect) Result {
	return Result{Reply: reply, Effect: effect, Accepted: true}
}

// StartParams describes who starts a flow.
type StartParams struct {
	UserID string
	// ChatID is where background notifications go. Defaults to UserID.
	ChatID string
	// Owner of produced files. Defaults to the user.
	Owner      domain.Owner
	TemplateID string
}

// Machine is the contract every flow implements.
type Machine interface {
	Type() domain.FlowType
	Start(p StartParams) (*domain.Session, string, error)
	Accept(s *domain.Session, in Input) Result
	// Active reports whether chat input for the user belongs to s.
	Active(s *domain.Session) bool
	Help(s *domain.Session) string
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type handler func(s *domain.Session, in Input) Result

type transition struct {
	state domain.State
	kind  InputKind
}

// table is the transition table of one flow.
type table struct {
	flow   domain.FlowType
	states map[domain.State]struct{}
	routes map[transition]handler
	// hint is the prompt for the current state, used for kind mismatches.
	hint func(s *domain.Session) string
	// closed answers input in states that take no chat input at all.
	closed func(s *domain.Session) string
	now    func() time.Time
}

func newTable(flow domain.FlowType, now func() time.Time, states ...domain.State) *table {
	t := &table{
		flow:   flow,
		states: make(map[domain.State]struct{}, len(states)),
		routes: make(map[transition]handler),
		now:    now,
	}
	for _, st := range states {
		t.states[st] = struct{}{}
	}
	return t
}

// on registers a transition. Unknown states and duplicates panic, so a
// malformed table fails when the flow is constructed.
func (t *table) on(state domain.State, kind InputKind, h handler) *table {
	if _, ok := t.states[state]; !ok {
		panic(fmt.Sprintf("flow %s: transition from unknown state %q", t.flow, state))
	}
	key := transition{state: state, kind: kind}
	if _, dup := t.routes[key]; dup {
		panic(fmt.Sprintf("flow %s: duplicate transition (%s, %s)", t.flow, state, kind))
	}
	t.routes[key] = h
	return t
}

func (t *table) handles(state domain.State) bool {
	for key := range t.routes {
		if key.state == state {
			return true
		}
	}
	return false
}

func (t *table) accept(s *domain.Session, in Input) Result {
	if s.Flow != t.flow {
		return reject(msgWrongFlow)
	}
	if _, ok := t.states[s.State]; !ok {
		return reject(msgWrongFlow)
	}
	h, ok := t.routes[transition{state: s.State, kind: in.Kind}]
	if !ok {
		if t.handles(s.State) && t.hint != nil {
			return reject(t.hint(s))
		}
		if t.closed != nil {
			return reject(t.closed(s))
		}
		return reject(msgNotAccepting)
	}
	res := h(s, in)
	if res.Accepted {
		s.Touch(t.now())
	}
	return res
}

func newSession(flow domain.FlowType, prefix string, p StartParams, state domain.State, now time.Time) *domain.Session {
	owner := p.Owner
	if owner.IsZero() {
		owner = domain.UserOwner(p.UserID)
	}
	chatID := p.ChatID
	if chatID == "" {
		chatID = p.UserID
	}
	return &domain.Session{
		ID:        prefix + "_" + shortID(12),
		Flow:      flow,
		UserID:    p.UserID,
		ChatID:    chatID,
		Owner:     owner,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:n]
}

const (
	msgWrongFlow    = "このセッションでは処理できない入力です。"
	msgNotAccepting = "現在この操作はできません。"
)
