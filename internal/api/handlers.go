package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	files     Files
	sessions  Sessions
	writer    Writer
	templates *schema.Registry
}

type errorBody struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

type fileInfo struct {
	domain.FileMeta
	URL string `json:"url"`
}

type renderResponse struct {
	Success bool   `json:"success"`
	PDFURL  string `json:"pdf_url"`
	EditURL string `json:"edit_url,omitempty"`
	Pages   int    `json:"pages,omitempty"`
	Message string `json:"message"`
}

func requesterFrom(r *http.Request) domain.Requester {
	q := r.URL.Query()
	return domain.Requester{UserID: q.Get("user_id"), GroupID: q.Get("group_id")}
}

func (h *handlers) serveFile(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "")
}

func (h *handlers) serveMedia(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, chi.URLParam(r, "media_type"))
}

// stream writes a stored file. A non-empty mediaType must match the file.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request, mediaType string) {
	meta, err := h.files.GetByID(r.Context(), chi.URLParam(r, "file_id"), requesterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if mediaType != "" && meta.MessageType != mediaType {
		writeError(w, domain.ErrFileNotFound)
		return
	}

	body, err := h.files.Open(r.Context(), meta)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if meta.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.FileSize, 10))
	}
	if meta.OriginalFilename != "" {
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("inline", map[string]string{"filename": meta.OriginalFilename}))
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("stream file", "file_id", meta.FileID, "error", err)
	}
}

func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	req := requesterFrom(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	files, err := h.files.List(r.Context(), req, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]fileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, h.info(f, req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out, "count": len(out)})
}

func (h *handlers) fileInfo(w http.ResponseWriter, r *http.Request) {
	req := requesterFrom(r)
	meta, err := h.files.GetByID(r.Context(), chi.URLParam(r, "file_id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.info(meta, req))
}

// info hides the storage location of a file.
func (h *handlers) info(meta domain.FileMeta, req domain.Requester) fileInfo {
	url := h.files.URLFor(meta, req)
	meta.FilePath = ""
	return fileInfo{FileMeta: meta, URL: url}
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Session(chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"success": true, "session": s}
	if s.Flow == domain.FlowMedia {
		if tpl, err := h.templates.Get(s.TemplateID); err == nil {
			resp["template"] = tpl
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) saveMemoir(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")

	var edit domain.MemoirEdit
	if err := decodeJSON(r, &edit); err != nil {
		writeError(w, err)
		return
	}
	_, err := h.sessions.Update(id, func(s *domain.Session) error {
		if s.Flow != domain.FlowQuick && s.Flow != domain.FlowProfile {
			return domain.ErrInvalidInput
		}
		s.Data.Apply(edit)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.render(w, r, id)
}

func (h *handlers) updatePage(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, err)
		return
	}
	pageID := chi.URLParam(r, "page_id")
	s, err := h.sessions.UpdatePage(chi.URLParam(r, "session_id"), pageID, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "page": s.Page(pageID)})
}

func (h *handlers) renderSession(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, chi.URLParam(r, "session_id"))
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, sessionID string) {
	res, err := h.sessions.Render(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrRenderFailed) {
			writeJSON(w, http.StatusInternalServerError, renderResponse{Message: "PDF生成中にエラーが発生しました"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{
		Success: true,
		PDFURL:  res.PDFURL,
		EditURL: res.EditURL,
		Pages:   res.Pages,
		Message: "PDFを更新しました",
	})
}

type generateRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (h *handlers) generateText(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	text, err := h.writer.MemoirText(r.Context(), req.Type, req.Data)
	if err != nil {
		if !errors.Is(err, domain.ErrUnknownTextType) {
			slog.Error("generate text", "type", req.Type, "error", err)
			writeJSON(w, http.StatusBadGateway, errorBody{Detail: "文章の生成に失敗しました"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "generated_text": text})
}

func (h *handlers) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": h.templates.List(),
		"default":   config.DefaultMediaTemplate,
	})
}

func (h *handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.Get(chi.URLParam(r, "template_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeError maps domain errors onto client responses. Unknown errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrFileNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "File not found"})
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Session not found"})
	case errors.Is(err, domain.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Template not found"})
	case errors.Is(err, domain.ErrPageNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Page not found"})
	case errors.Is(err, domain.ErrUnknownTextType):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Unknown text type"})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
	}
}
