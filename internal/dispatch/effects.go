package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/flow"
	"github.com/set-night/memoirbot/internal/render"
	"github.com/set-night/memoirbot/internal/storage"
)

// RenderResult is a rendered and stored document.
type RenderResult struct {
	File    domain.FileMeta
	PDFURL  string
	EditURL string
	Pages   int
}

func renderKey(sessionID string, v render.Variant) string {
	return "render:" + v.String() + ":" + sessionID
}

func storyKey(sessionID, photoID string) string {
	return "story:" + sessionID + ":" + photoID
}

// maxStoryAttempts bounds regenerations caused by answers changing while a
// story is being written.
const maxStoryAttempts = 3

// renderAndStore renders s and saves the PDF under the session owner.
func (r *Router) renderAndStore(ctx context.Context, s *domain.Session, v render.Variant) (*RenderResult, error) {
	start := time.Now()
	out, err := r.renderer.Render(ctx, s, v)
	if err != nil {
		result := "error"
		var rerr *render.Error
		if errors.As(err, &rerr) && rerr.Timeout {
			result = "timeout"
		}
		r.metrics.ObserveRender(string(s.Flow), result, time.Since(start))
		return nil, err
	}
	r.metrics.ObserveRender(string(s.Flow), "ok", time.Since(start))

	meta, err := r.files.Save(ctx, storage.SaveParams{
		Data:        out.PDF,
		Filename:    out.Filename,
		ContentType: "application/pdf",
		Owner:       s.Owner,
		UploaderID:  s.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("save pdf for session %s: %w", s.ID, err)
	}

	res := &RenderResult{
		File:   meta,
		PDFURL: r.files.URLFor(meta, domain.Requester{}),
		Pages:  out.Pages,
	}
	if s.Flow != domain.FlowPhoto {
		res.EditURL = r.editURL(s.ID)
	}
	return res, nil
}

// finishRender moves a profile session out of generating once its PDF exists.
func (r *Router) finishRender(s *domain.Session) {
	if s.Flow != domain.FlowProfile {
		return
	}
	rt, ok := r.byFlow[domain.FlowProfile]
	if !ok {
		return
	}
	_, err := rt.store.Update(s.ID, func(cur *domain.Session) error {
		if cur.State == domain.StateGenerating {
			cur.State = domain.StateCompleted
			cur.Touch(time.Now())
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		slog.Error("complete session", "session_id", s.ID, "error", err)
	}
}

func (r *Router) scheduleRender(rt route, s *domain.Session, v render.Variant) {
	err := r.pool.Submit(renderKey(s.ID, v), func(ctx context.Context) error {
		res, err := r.renderAndStore(ctx, s, v)
		if err != nil {
			slog.Error("render failed", "flow", s.Flow, "session_id", s.ID, "variant", v.String(), "error", err)
			r.alert(err, fmt.Sprintf("render %s session %s", s.Flow, s.ID))
			r.push(ctx, s.ChatID, Message{Text: renderFailedMessage(s.Flow)})
			return err
		}
		r.finishRender(s)
		r.push(ctx, s.ChatID, completionMessage(v, res, false))
		return nil
	})
	r.submitted(rt, s, "render", err)
}

func (r *Router) scheduleStory(rt route, s *domain.Session) {
	req, ok := r.photo.StoryRequest(s)
	if !ok {
		return
	}
	err := r.pool.Submit(storyKey(s.ID, req.PhotoID), func(ctx context.Context) error {
		return r.generateStory(ctx, rt, s, req)
	})
	r.submitted(rt, s, "story", err)
}

// generateStory writes the story for one photo. A request rejected while
// this job runs is picked up here: when the answers changed in the meantime
// the story is written again from the current ones.
func (r *Router) generateStory(ctx context.Context, rt route, s *domain.Session, req flow.StoryRequest) error {
	for attempt := 1; ; attempt++ {
		story, err := r.writer.PhotoStory(ctx, req.Answers)
		if err != nil {
			r.metrics.ObserveStory("error")
			slog.Error("story generation failed", "session_id", s.ID, "photo_id", req.PhotoID, "error", err)
			r.push(ctx, s.ChatID, Message{Text: msgStoryFailed})
			return err
		}

		var prompt string
		_, err = rt.store.Update(s.ID, func(cur *domain.Session) error {
			var aerr error
			prompt, aerr = r.photo.AttachStory(cur, req, story)
			return aerr
		})
		if err == nil {
			r.metrics.ObserveStory("ok")
			r.push(ctx, s.ChatID, Message{Text: prompt, Actions: storyActions})
			return nil
		}
		if errors.Is(err, flow.ErrStaleStory) && attempt < maxStoryAttempts {
			if next, ok := r.currentStoryRequest(rt, s.ID); ok && next.PhotoID == req.PhotoID {
				req = next
				continue
			}
		}
		r.metrics.ObserveStory("discarded")
		slog.Warn("story discarded", "session_id", s.ID, "photo_id", req.PhotoID, "error", err)
		return nil
	}
}

func (r *Router) currentStoryRequest(rt route, sessionID string) (flow.StoryRequest, bool) {
	cur, err := rt.store.Get(sessionID)
	if err != nil {
		return flow.StoryRequest{}, false
	}
	return r.photo.StoryRequest(cur)
}

// submitted handles a rejected submission. The immediate reply has already
// gone out, so only a busy notice is pushed.
func (r *Router) submitted(rt route, s *domain.Session, kind string, err error) {
	switch {
	case err == nil:
		slog.Debug("task queued", "kind", kind, "session_id", s.ID)
	case errors.Is(err, domain.ErrTaskRunning):
		slog.Info("task already running", "kind", kind, "session_id", s.ID)
	default:
		slog.Warn("task rejected", "kind", kind, "flow", rt.machine.Type(), "session_id", s.ID, "error", err)
		r.push(context.Background(), s.ChatID, Message{Text: msgBusy})
	}
}

// Render re-renders a session synchronously, stores the PDF and pushes an
// update notice to the session's chat.
func (r *Router) Render(ctx context.Context, sessionID string) (*RenderResult, error) {
	_, s, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	var res *RenderResult
	err = r.pool.Do(ctx, renderKey(s.ID, render.VariantFull), func(ctx context.Context) error {
		var rerr error
		res, rerr = r.renderAndStore(ctx, s, render.VariantFull)
		return rerr
	})
	if err != nil {
		slog.Error("render failed", "flow", s.Flow, "session_id", s.ID, "error", err)
		r.alert(err, fmt.Sprintf("render %s session %s", s.Flow, s.ID))
		return nil, err
	}
	r.finishRender(s)
	r.push(ctx, s.ChatID, completionMessage(render.VariantFull, res, true))
	return res, nil
}

var storyActions = []Action{
	{Label: "👍 いいね", Text: "👍"},
	{Label: "🔄 再生成", Text: "🔄"},
}

func completionMessage(v render.Variant, res *RenderResult, updated bool) Message {
	if v == render.VariantCover {
		return Message{
			Text:  "📖 表紙ができました！\n続けて見開きページ用の写真を送ってください。",
			Links: []Link{{Label: "📄 表紙を見る", URL: res.PDFURL}},
		}
	}
	text := "✨ 自分史が完成しました！"
	if updated {
		text = "✨ 自分史を更新しました！"
	}
	msg := Message{
		Text:  fmt.Sprintf("%s\n\n%dページのPDFを作成しました。", text, res.Pages),
		Links: []Link{{Label: "📄 PDFを見る", URL: res.PDFURL}},
	}
	if res.EditURL != "" {
		msg.Links = append(msg.Links, Link{Label: "✏️ 内容を編集", URL: res.EditURL})
	}
	return msg
}

func renderFailedMessage(ft domain.FlowType) string {
	if ft == domain.FlowProfile {
		return msgRenderFailed + "\n「再生成」と送信するともう一度作成します。"
	}
	return msgRenderFailed
}

const (
	msgRenderFailed = "PDF生成中にエラーが発生しました。しばらくしてからもう一度お試しください。"
	msgStoryFailed  = "ストーリーの生成に失敗しました。「再生成」と送信してもう一度お試しください。"
	msgBusy         = "現在混み合っています。しばらくしてからもう一度お試しください。"
)
