package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tenismatch/internal/service"
)

type conversationCreateRequest struct {
	OtherUserID int64  `json:"other_user_id"`
	AdID        *int64 `json:"ad_id,omitempty"`
}

type markReadRequest struct {
	Upto *time.Time `json:"upto,omitempty"`
}

type markReadResponse struct {
	ConversationID int64     `json:"conversation_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}

// @Summary      Open a conversation
// @Description  Get or create the conversation between the current user and other_user_id
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body conversationCreateRequest true "Counterpart"
// @Success      200  {object}  domain.Conversation "existing conversation"
// @Success      201  {object}  domain.Conversation "created conversation"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations [post]
func handleCreateConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		var req conversationCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}

		conv, created, err := convSvc.GetOrCreate(r.Context(), currentUser.ID, req.OtherUserID, req.AdID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, conv)
	}
}

// @Summary      List conversations
// @Description  Conversations of the current user, most recently active first
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        archived query bool false "Include archived conversations"
// @Success      200  {array}   domain.ConversationSummary
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		includeArchived := r.URL.Query().Get("archived") == "true"
		convs, err := convSvc.ListForUser(r.Context(), currentUser.ID, includeArchived)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

// @Summary      Get a conversation
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {object}  domain.Conversation
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID} [get]
func handleGetConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		id, ok := pathID(r, "conversationID")
		if !ok {
			writeBadRequest(w, "invalid conversation id")
			return
		}
		conv, err := convSvc.Get(r.Context(), id, currentUser.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      Mark a conversation read
// @Description  Moves the current user's read marker forward to upto (default now)
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        input body markReadRequest false "Read marker"
// @Success      200  {object}  markReadResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/read [post]
func handleMarkConversationRead(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		id, ok := pathID(r, "conversationID")
		if !ok {
			writeBadRequest(w, "invalid conversation id")
			return
		}
		var req markReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeBadRequest(w, "invalid JSON body")
			return
		}
		var upto time.Time
		if req.Upto != nil {
			upto = *req.Upto
		}
		at, err := convSvc.MarkRead(r.Context(), id, currentUser.ID, upto)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, markReadResponse{ConversationID: id, LastReadAt: at})
	}
}
