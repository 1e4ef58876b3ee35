// Package dispatch routes chat events to the flow that owns the user and
// runs the side effects flows ask for.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/flow"
	"github.com/set-night/memoirbot/internal/metrics"
	"github.com/set-night/memoirbot/internal/render"
	"github.com/set-night/memoirbot/internal/session"
	"github.com/set-night/memoirbot/internal/storage"
	"github.com/set-night/memoirbot/internal/worker"
)

// Writer generates free text.
type Writer interface {
	Chat(ctx context.Context, message string) (string, error)
	PhotoStory(ctx context.Context, answers []string) (string, error)
	GenerateFile(ctx context.Context, kind domain.GeneratedKind, request string) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, s *domain.Session, v render.Variant) (*render.Output, error)
}

type Files interface {
	Save(ctx context.Context, p storage.SaveParams) (domain.FileMeta, error)
	URLFor(meta domain.FileMeta, req domain.Requester) string
	List(ctx context.Context, req domain.Requester, limit int) ([]domain.FileMeta, error)
}

type Samples interface {
	List() ([]storage.Sample, error)
}

type Pool interface {
	Submit(key string, fn worker.Func) error
	Do(ctx context.Context, key string, fn worker.Func) error
}

type Deps struct {
	Quick   *flow.Quick
	Photo   *flow.Photo
	Media   *flow.Media
	Profile *flow.Profile
	Stores  Stores

	Writer    Writer
	Renderer  Renderer
	Files     Files
	Samples   Samples
	Pool      Pool
	Messenger Messenger
	// EditURL links to the structured edit page of a session.
	EditURL func(sessionID string) string
	// MediaTemplate is the template started from chat.
	MediaTemplate string

	Metrics *metrics.Metrics
	Alerter Alerter
}

// Stores holds one session store per flow.
type Stores struct {
	Quick   *session.Store
	Photo   *session.Store
	Media   *session.Store
	Profile *session.Store
}

// NewStores creates the four stores with shared options.
func NewStores(opts ...session.Option) Stores {
	return Stores{
		Quick:   session.NewStore(domain.FlowQuick, opts...),
		Photo:   session.NewStore(domain.FlowPhoto, opts...),
		Media:   session.NewStore(domain.FlowMedia, opts...),
		Profile: session.NewStore(domain.FlowProfile, opts...),
	}
}

func (s Stores) All() []*session.Store {
	return []*session.Store{s.Photo, s.Media, s.Quick, s.Profile}
}

// route pairs a flow with its store.
type route struct {
	machine flow.Machine
	store   *session.Store
}

type Router struct {
	routes []route
	byFlow map[domain.FlowType]route

	photo *flow.Photo
	media *flow.Media

	writer        Writer
	renderer      Renderer
	files         Files
	samples       Samples
	pool          Pool
	messenger     Messenger
	editURL       func(string) string
	mediaTemplate string
	metrics       *metrics.Metrics
	alerter       Alerter

	locks *userLocks
}

func New(d Deps) *Router {
	r := &Router{
		photo:         d.Photo,
		media:         d.Media,
		writer:        d.Writer,
		renderer:      d.Renderer,
		files:         d.Files,
		samples:       d.Samples,
		pool:          d.Pool,
		messenger:     d.Messenger,
		editURL:       d.EditURL,
		mediaTemplate: d.MediaTemplate,
		metrics:       d.Metrics,
		alerter:       d.Alerter,
		locks:         newUserLocks(),
		byFlow:        make(map[domain.FlowType]route),
	}
	if r.mediaTemplate == "" {
		r.mediaTemplate = config.DefaultMediaTemplate
	}
	if r.editURL == nil {
		r.editURL = func(string) string { return "" }
	}

	// Photo-story input is checked first, then media, quick and profile.
	for _, rt := range []route{
		{d.Photo, d.Stores.Photo},
		{d.Media, d.Stores.Media},
		{d.Quick, d.Stores.Quick},
		{d.Profile, d.Stores.Profile},
	} {
		r.routes = append(r.routes, rt)
		r.byFlow[rt.machine.Type()] = rt
	}
	return r
}

// owner returns the highest priority flow with an active session for userID.
func (r *Router) owner(userID string) (route, *domain.Session, bool) {
	for _, rt := range r.routes {
		if s, ok := rt.store.ActiveByUser(userID, rt.machine.Active); ok {
			return rt, s, true
		}
	}
	return route{}, nil, false
}

// HandleText routes a text event. Every event gets exactly one reply.
func (r *Router) HandleText(ctx context.Context, ev Event) {
	release := r.locks.lock(ev.UserID)
	defer release()

	text := strings.TrimSpace(ev.Text)

	if flow.IsCancel(text) {
		r.cancel(ctx, ev)
		return
	}

	if rt, s, ok := r.owner(ev.UserID); ok {
		r.metrics.ObserveEvent("text", string(rt.machine.Type()))
		if flow.IsHelp(text) {
			r.reply(ctx, ev, Message{Text: rt.machine.Help(s)})
			return
		}
		r.advance(ctx, ev, rt, s.ID, flow.Text(text))
		return
	}

	if kind, ok := fileRequest(text); ok {
		r.metrics.ObserveEvent("text", "generate_"+string(kind))
		r.generateFile(ctx, ev, kind, text)
		return
	}

	if ft, ok := matchTrigger(text); ok {
		r.metrics.ObserveEvent("text", "start_"+string(ft))
		r.start(ctx, ev, ft)
		return
	}

	if isFileList(text) {
		r.metrics.ObserveEvent("text", "files")
		r.listFiles(ctx, ev)
		return
	}

	if isSampleRequest(text) {
		r.metrics.ObserveEvent("text", "samples")
		r.listSamples(ctx, ev)
		return
	}

	r.metrics.ObserveEvent("text", "chat")
	r.chat(ctx, ev, text)
}

// HandleImage routes an image event.
func (r *Router) HandleImage(ctx context.Context, ev Event) {
	release := r.locks.lock(ev.UserID)
	defer release()

	if rt, s, ok := r.owner(ev.UserID); ok {
		r.metrics.ObserveEvent("image", string(rt.machine.Type()))
		r.advance(ctx, ev, rt, s.ID, flow.Image(ev.Image))
		return
	}
	r.metrics.ObserveEvent("image", "none")
	r.reply(ctx, ev, Message{Text: msgImageOutsideFlow})
}

// Start begins a flow for the event's user regardless of trigger words.
func (r *Router) Start(ctx context.Context, ev Event, ft domain.FlowType) {
	release := r.locks.lock(ev.UserID)
	defer release()
	r.start(ctx, ev, ft)
}

// Cancel ends whichever flow owns the user.
func (r *Router) Cancel(ctx context.Context, ev Event) {
	release := r.locks.lock(ev.UserID)
	defer release()
	r.cancel(ctx, ev)
}

// ListFiles replies with the files visible to the event's sender.
func (r *Router) ListFiles(ctx context.Context, ev Event) {
	r.listFiles(ctx, ev)
}

// ListSamples replies with the sample PDFs.
func (r *Router) ListSamples(ctx context.Context, ev Event) {
	r.listSamples(ctx, ev)
}

func (r *Router) start(ctx context.Context, ev Event, ft domain.FlowType) {
	rt, ok := r.byFlow[ft]
	if !ok {
		r.reply(ctx, ev, Message{Text: msgGenericError})
		return
	}
	p := flow.StartParams{
		UserID: ev.UserID,
		ChatID: ev.ChatID,
		Owner:  ev.Owner(),
	}
	if ft == domain.FlowMedia {
		p.TemplateID = r.mediaTemplate
	}
	s, reply, err := rt.machine.Start(p)
	if err != nil {
		slog.Error("start flow", "flow", ft, "user_id", ev.UserID, "error", err)
		r.reply(ctx, ev, Message{Text: msgGenericError})
		return
	}
	rt.store.Create(s)
	slog.Info("flow started", "flow", ft, "session_id", s.ID, "user_id", ev.UserID)
	r.reply(ctx, ev, Message{Text: reply})
}

func (r *Router) cancel(ctx context.Context, ev Event) {
	rt, s, ok := r.owner(ev.UserID)
	if !ok {
		r.reply(ctx, ev, Message{Text: msgNothingToCancel})
		return
	}
	rt.store.Delete(s.ID)
	slog.Info("flow cancelled", "flow", rt.machine.Type(), "session_id", s.ID, "user_id", ev.UserID)
	r.reply(ctx, ev, Message{Text: msgCancelled})
}

// advance feeds one input to the owning flow and runs its effect.
func (r *Router) advance(ctx context.Context, ev Event, rt route, sessionID string, in flow.Input) {
	var res flow.Result
	snapshot, err := rt.store.Update(sessionID, func(s *domain.Session) error {
		res = rt.machine.Accept(s, in)
		return nil
	})
	if err != nil {
		slog.Error("advance flow", "flow", rt.machine.Type(), "session_id", sessionID, "error", err)
		r.reply(ctx, ev, Message{Text: msgGenericError})
		return
	}

	slog.Debug("flow input",
		"flow", rt.machine.Type(),
		"session_id", sessionID,
		"kind", in.Kind.String(),
		"accepted", res.Accepted,
		"state", snapshot.State,
		"effect", res.Effect.String(),
	)
	r.reply(ctx, ev, Message{Text: res.Reply})

	switch res.Effect {
	case flow.EffectCancel:
		rt.store.Delete(sessionID)
	case flow.EffectRenderCover:
		r.scheduleRender(rt, snapshot, render.VariantCover)
	case flow.EffectRender:
		r.scheduleRender(rt, snapshot, render.VariantFull)
	case flow.EffectGenerateStory:
		r.scheduleStory(rt, snapshot)
	}
}

func (r *Router) chat(ctx context.Context, ev Event, text string) {
	if text == "" || r.writer == nil {
		r.reply(ctx, ev, Message{Text: msgChatUnavailable})
		return
	}
	answer, err := r.writer.Chat(ctx, text)
	if err != nil {
		slog.Error("chat reply failed", "user_id", ev.UserID, "error", err)
		r.reply(ctx, ev, Message{Text: msgChatUnavailable})
		return
	}
	r.reply(ctx, ev, Message{Text: answer})
}

// generateFile writes the requested file, stores it for the sender and
// replies with its URL.
func (r *Router) generateFile(ctx context.Context, ev Event, kind domain.GeneratedKind, text string) {
	if r.writer == nil {
		r.reply(ctx, ev, Message{Text: msgChatUnavailable})
		return
	}
	body, err := r.writer.GenerateFile(ctx, kind, text)
	if err != nil {
		slog.Error("file generation failed", "kind", kind, "user_id", ev.UserID, "error", err)
		r.reply(ctx, ev, Message{Text: msgFileGenerationFailed})
		return
	}
	meta, err := r.files.Save(ctx, storage.SaveParams{
		Data:        []byte(body),
		Filename:    generatedFilename(kind, text),
		ContentType: kind.ContentType(),
		Owner:       ev.Owner(),
		UploaderID:  ev.UserID,
	})
	if err != nil {
		slog.Error("save generated file", "kind", kind, "user_id", ev.UserID, "error", err)
		r.alert(err, "save generated "+string(kind))
		r.reply(ctx, ev, Message{Text: msgFileGenerationFailed})
		return
	}
	slog.Info("generated file stored", "kind", kind, "file_id", meta.FileID, "user_id", ev.UserID)

	url := r.files.URLFor(meta, ev.Requester())
	r.reply(ctx, ev, Message{
		Text:  fmt.Sprintf("%sを生成しました！\nファイルURL: %s", generatedLabels[kind], url),
		Links: []Link{{Label: "📄 ファイルを開く", URL: url}},
	})
}

var generatedLabels = map[domain.GeneratedKind]string{
	domain.GeneratedReport: "レポート",
	domain.GeneratedJSON:   "JSONファイル",
	domain.GeneratedText:   "テキストファイル",
}

// generatedFilename names a file after the leading runes of its request.
func generatedFilename(kind domain.GeneratedKind, text string) string {
	prefix := map[domain.GeneratedKind]string{
		domain.GeneratedReport: "generated_report",
		domain.GeneratedJSON:   "generated_data",
		domain.GeneratedText:   "generated_text",
	}[kind]

	var b strings.Builder
	for i, c := range []rune(text) {
		if i == config.GeneratedNameRunes {
			break
		}
		if strings.ContainsRune(`/\:*?"<>| `, c) || c < 0x20 {
			c = '_'
		}
		b.WriteRune(c)
	}
	return prefix + "_" + b.String() + "." + kind.Ext()
}

func (r *Router) listSamples(ctx context.Context, ev Event) {
	if r.samples == nil {
		r.reply(ctx, ev, Message{Text: msgNoSampleDir})
		return
	}
	samples, err := r.samples.List()
	if errors.Is(err, fs.ErrNotExist) {
		r.reply(ctx, ev, Message{Text: msgNoSampleDir})
		return
	}
	if err != nil {
		slog.Error("list samples", "user_id", ev.UserID, "error", err)
		r.reply(ctx, ev, Message{Text: msgSamplesFailed})
		return
	}
	if len(samples) == 0 {
		r.reply(ctx, ev, Message{Text: msgNoSamples})
		return
	}

	var b strings.Builder
	b.WriteString("サンプルPDFファイル一覧：\n\n")
	for _, s := range samples {
		fmt.Fprintf(&b, "📄 %s\n📦 サイズ: %s bytes\n🔗 URL: %s\n\n", s.Name, groupDigits(s.Size), s.URL)
	}
	r.reply(ctx, ev, Message{Text: strings.TrimSpace(b.String())})
}

// groupDigits formats n with comma thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func (r *Router) listFiles(ctx context.Context, ev Event) {
	files, err := r.files.List(ctx, ev.Requester(), 0)
	if err != nil {
		slog.Error("list files", "user_id", ev.UserID, "error", err)
		r.reply(ctx, ev, Message{Text: msgFileListFailed})
		return
	}
	if len(files) == 0 {
		r.reply(ctx, ev, Message{Text: msgNoFiles})
		return
	}

	var b strings.Builder
	b.WriteString("保存されているファイル:\n\n")
	for i, f := range files {
		if i == config.FilesListLimit {
			fmt.Fprintf(&b, "... 他 %d 件", len(files)-config.FilesListLimit)
			break
		}
		fmt.Fprintf(&b, "%s (%s)\nURL: %s\n\n", f.OriginalFilename, f.MessageType, r.files.URLFor(f, ev.Requester()))
	}
	r.reply(ctx, ev, Message{Text: strings.TrimSpace(b.String())})
}

func (r *Router) reply(ctx context.Context, ev Event, msg Message) {
	if err := r.messenger.Reply(ctx, ev, msg); err != nil {
		slog.Error("reply failed", "user_id", ev.UserID, "chat_id", ev.ChatID, "error", err)
	}
}

func (r *Router) push(ctx context.Context, chatID string, msg Message) {
	if err := r.messenger.Push(ctx, chatID, msg); err != nil {
		slog.Error("push failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) alert(err error, context string) {
	if r.alerter != nil {
		r.alerter.LogError(err, context)
	}
}

// lookup finds a session by id in any store.
func (r *Router) lookup(sessionID string) (route, *domain.Session, error) {
	for _, rt := range r.routes {
		s, err := rt.store.Get(sessionID)
		if err == nil {
			return rt, s, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return route{}, nil, err
		}
	}
	return route{}, nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
}

// Session returns a snapshot of any flow's session.
func (r *Router) Session(sessionID string) (*domain.Session, error) {
	_, s, err := r.lookup(sessionID)
	return s, err
}

// Update mutates a session in place under its store lock.
func (r *Router) Update(sessionID string, fn func(*domain.Session) error) (*domain.Session, error) {
	rt, _, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.store.Update(sessionID, fn)
}

// UpdatePage applies a structured edit to one page of a media session.
func (r *Router) UpdatePage(sessionID, pageID string, data map[string]any) (*domain.Session, error) {
	rt, ok := r.byFlow[domain.FlowMedia]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return rt.store.Update(sessionID, func(s *domain.Session) error {
		return r.media.UpdatePage(s, pageID, data)
	})
}

const (
	msgImageOutsideFlow = "画像を受信しました。自分史を作成する場合は「作成」と送信してください。"
	msgCancelled        = "作成をキャンセルしました。"
	msgNothingToCancel  = "キャンセルする作成中の自分史はありません。"
	msgGenericError     = "エラーが発生しました。しばらくしてからもう一度お試しください。"
	msgChatUnavailable  = "申し訳ありません、現在応答できません。しばらくしてからもう一度お試しください。"
	msgNoFiles          = "保存されているファイルはありません。"
	msgFileListFailed   = "ファイル一覧の取得に失敗しました。"

	msgFileGenerationFailed = "ファイルの生成に失敗しました。しばらくしてからもう一度お試しください。"
	msgNoSampleDir          = "サンプルファイルディレクトリが見つかりません。"
	msgNoSamples            = "サンプルPDFファイルが見つかりません。"
	msgSamplesFailed        = "サンプルファイルの処理中にエラーが発生しました。"
)
