package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/store"
)

// ConversationStore is the persistence used by ConversationHandler.
// *store.Store implements it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *store.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]store.Conversation, error)
	UpdateConversation(ctx context.Context, id uuid.UUID, u store.ConversationUpdate) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	CreateMessage(ctx context.Context, m *store.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]store.Message, error)
}

// ConversationHandler serves the conversation and message routes.
type ConversationHandler struct {
	store ConversationStore
}

// NewConversationHandler creates a handler over s.
func NewConversationHandler(s ConversationStore) *ConversationHandler {
	return &ConversationHandler{store: s}
}

// Routes registers the handler's routes on r.
func (h *ConversationHandler) Routes(r chi.Router) {
	r.Get("/conversations/{userID}", h.listConversations)
	r.Post("/conversations", h.createConversation)
	r.Get("/conversation/{id}", h.getConversation)
	r.Put("/conversation/{id}", h.updateConversation)
	r.Delete("/conversation/{id}", h.deleteConversation)
	r.Get("/messages/{conversationID}", h.listMessages)
	r.Post("/messages", h.createMessage)
}

func (h *ConversationHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	list, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, list)
}

func (h *ConversationHandler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req types.ConversationRequest
	if err := proxy.DecodeJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, proxy.AsRequestError(err))
		return
	}

	userID, err := parseUUID(req.UserID, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c := &store.Conversation{UserID: userID, ModelID: req.ModelID, Title: req.Title}
	if err := h.store.CreateConversation(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, c)
}

func (h *ConversationHandler) getConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, c)
}

func (h *ConversationHandler) updateConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req types.ConversationUpdateRequest
	if err := proxy.DecodeJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.store.UpdateConversation(r.Context(), id, store.ConversationUpdate{
		Title:   req.Title,
		ModelID: req.ModelID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, c)
}

func (h *ConversationHandler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.store.DeleteConversation(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"id": id.String()})
}

func (h *ConversationHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "conversationID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, msgs)
}

func (h *ConversationHandler) createMessage(w http.ResponseWriter, r *http.Request) {
	var req types.MessageRequest
	if err := proxy.DecodeJSONBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, proxy.AsRequestError(err))
		return
	}

	conversationID, err := parseUUID(req.ConversationID, "conversation_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m := &store.Message{ConversationID: conversationID, Sender: req.Sender, Body: req.Message}
	if err := h.store.CreateMessage(r.Context(), m); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, m)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := proxy.HandleError(err)
	if resp.Error.HTTPStatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "store request failed", "path", r.URL.Path, "error", err)
	}
	if werr := proxy.WriteErrorResponse(w, resp); werr != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", "error", werr)
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	return parseUUID(chi.URLParam(r, param), param)
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &proxy.RequestError{
			Message: field + " must be a UUID",
			Code:    types.CodeInvalidValue,
			Param:   field,
		}
	}
	return id, nil
}
