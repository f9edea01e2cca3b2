package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reverie-ai/reverie/internal/api/respond"
	"github.com/reverie-ai/reverie/internal/services"
)

type PostHandler struct {
	svc *services.PostService
}

func NewPostHandler(svc *services.PostService) *PostHandler { return &PostHandler{svc: svc} }

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

func (h *PostHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID  string `json:"userId"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	c, err := h.svc.Comment(r.Context(), mux.Vars(r)["postId"], in.UserID, in.Content)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, c)
}

func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListComments(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

func (h *PostHandler) CreateLike(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	l, err := h.svc.Like(r.Context(), mux.Vars(r)["postId"], in.UserID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, l)
}

func (h *PostHandler) ListLikes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListLikes(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}
