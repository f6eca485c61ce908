package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tenismatch/internal/service"
)

type messageCreateRequest struct {
	Body string `json:"body"`
}

// @Summary      List messages
// @Description  Messages with id greater than since_id, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        since_id query int false "Return messages after this id"
// @Success      200  {array}   domain.Message
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		convID, ok := pathID(r, "conversationID")
		if !ok {
			writeBadRequest(w, "invalid conversation id")
			return
		}
		var sinceID int64
		if v := r.URL.Query().Get("since_id"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeBadRequest(w, "invalid since_id")
				return
			}
			sinceID = n
		}

		msgs, err := msgSvc.List(r.Context(), convID, currentUser.ID, sinceID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Send a message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        input body messageCreateRequest true "Message"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [post]
func handleCreateMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeUnauthorized(w)
			return
		}
		convID, ok := pathID(r, "conversationID")
		if !ok {
			writeBadRequest(w, "invalid conversation id")
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}

		msg, err := msgSvc.Append(r.Context(), convID, currentUser.ID, req.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
