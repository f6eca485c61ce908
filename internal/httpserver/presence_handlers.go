package httpserver

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"tenismatch/internal/presence"
	"tenismatch/internal/service"
)

type presenceResponse struct {
	ConversationID int64   `json:"conversation_id"`
	UserID         int64   `json:"user_id"`
	Online         bool    `json:"online"`
	Typing         []int64 `json:"typing"`
}

// @Summary      Signal typing
// @Description  Marks the current user as typing in the conversation for a few seconds
// @Tags         presence
// @Security     BearerAuth
// @Param        conversationID path int true "Conversation ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/typing [post]
func handleTyping(convSvc *service.ConversationService, tracker presence.Tracker) http.HandlerFunc {
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
		if _, err := convSvc.Get(r.Context(), id, currentUser.ID); err != nil {
			writeError(w, r, err)
			return
		}
		if err := tracker.SetTyping(r.Context(), id, currentUser.ID); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("set typing failed")
		}
		_ = tracker.Touch(r.Context(), currentUser.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Conversation presence
// @Description  Whether the other participant is online and who is typing
// @Tags         presence
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {object}  presenceResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/presence [get]
func handleGetPresence(convSvc *service.ConversationService, tracker presence.Tracker) http.HandlerFunc {
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

		resp := presenceResponse{ConversationID: id, UserID: conv.OtherParticipant(currentUser.ID), Typing: []int64{}}
		// Presence is advisory; a backend failure reads as offline and idle.
		if online, err := tracker.Online(r.Context(), []int64{resp.UserID}); err == nil {
			resp.Online = online[resp.UserID]
		}
		if typing, err := tracker.Typing(r.Context(), id); err == nil && typing != nil {
			resp.Typing = typing
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
