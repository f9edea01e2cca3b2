package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reverie-ai/reverie/internal/api/respond"
	"github.com/reverie-ai/reverie/internal/services"
)

type ThreadHandler struct {
	threads   *services.ThreadService
	responses *services.ResponseService
}

func NewThreadHandler(threads *services.ThreadService, responses *services.ResponseService) *ThreadHandler {
	return &ThreadHandler{threads: threads, responses: responses}
}

func (h *ThreadHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID      string `json:"userId"`
		CharacterID string `json:"characterId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	out, err := h.threads.Create(r.Context(), in.UserID, in.CharacterID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	t, err := h.threads.Get(r.Context(), mux.Vars(r)["threadId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	list, err := h.threads.ListByUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

func (h *ThreadHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	list, err := h.threads.ListMessages(r.Context(), mux.Vars(r)["threadId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

// PostMessage stores the user's message and kicks off a response cycle in
// the background. 202 signals the reply is pending, not present.
func (h *ThreadHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	msg, err := h.responses.PostUserMessage(r.Context(), mux.Vars(r)["threadId"], in.Content)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, msg)
}

// RespondNow forces the character's next message to the present, running a
// fresh cycle when nothing is scheduled. The resulting message is returned
// in the response body.
func (h *ThreadHandler) RespondNow(w http.ResponseWriter, r *http.Request) {
	msg, err := h.responses.RespondNow(r.Context(), mux.Vars(r)["threadId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, msg)
}

func (h *ThreadHandler) DeleteMessageFrom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := h.responses.DeleteFrom(r.Context(), vars["threadId"], vars["messageId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
