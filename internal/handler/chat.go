// Package handler provides HTTP handlers for the chat server.
package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phantasma-ai/specky/internal/middleware"
	"github.com/phantasma-ai/specky/internal/render"
	"github.com/phantasma-ai/specky/internal/service"
	"github.com/phantasma-ai/specky/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	// Turn markup is escaped by the render filter.
	"markup": func(s string) template.HTML { return template.HTML(s) },
}).ParseFS(templateFS, "templates/*.html"))

// chatView is the data behind the page and fragment templates.
type chatView struct {
	ID      string
	Pending bool
	Turns   []render.DisplayTurn
}

// ChatHandler serves the chat pages.
type ChatHandler struct {
	service  *service.ChatService
	sessions *middleware.Sessions
	logger   *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, sessions *middleware.Sessions, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service:  svc,
		sessions: sessions,
		logger:   log,
	}
}

// Index handles GET /. It resumes the chat named by the session cookie or
// starts a new one.
func (h *ChatHandler) Index(w http.ResponseWriter, r *http.Request) {
	chatID := middleware.GetChatID(r.Context())
	if middleware.ValidateChatID(chatID) != nil {
		chatID = h.service.NewSessionID()
		h.logger.Info("new chat session", zap.String("chat_id", chatID))
	}

	if err := h.sessions.Issue(w, chatID); err != nil {
		h.logger.Error("failed to issue session cookie", zap.Error(err))
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/chat/"+chatID, http.StatusFound)
}

// Page handles GET /chat/{chatID}
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "page")
}

// Convo handles GET /chat/{chatID}/convo
func (h *ChatHandler) Convo(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "convo")
}

// Send handles POST /chat/{chatID}. Duplicate submissions while a reply is
// pending are dropped and the current conversation is rendered instead.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")
	log := h.logger.WithRequest(middleware.GetCorrelationID(ctx), chatID)

	message := r.FormValue("message")
	if err := middleware.ValidateMessageContent(message); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accepted, err := h.service.Submit(ctx, chatID, message)
	if err != nil {
		log.Error("failed to handle message", zap.Error(err))
		http.Error(w, "failed to handle message", statusFor(err))
		return
	}
	if !accepted {
		log.Debug("message dropped, reply pending")
	}

	h.render(w, r, "convo")
}

// Status handles GET /api/v1/chats/{chatID}
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	status, err := h.service.Status(r.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to load chat status", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, statusFor(err), "failed to load chat")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *ChatHandler) render(w http.ResponseWriter, r *http.Request, name string) {
	chatID := chi.URLParam(r, "chatID")

	conv, err := h.service.Conversation(r.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to load conversation", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "failed to load conversation", statusFor(err))
		return
	}

	view := chatView{
		ID:      chatID,
		Pending: h.service.IsPending(chatID),
		Turns:   render.Turns(conv.Turns),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, view); err != nil {
		h.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
	}
}
