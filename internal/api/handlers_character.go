package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reverie-ai/reverie/internal/api/respond"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/services"
)

type CharacterHandler struct {
	svc *services.CharacterService
}

func NewCharacterHandler(svc *services.CharacterService) *CharacterHandler {
	return &CharacterHandler{svc: svc}
}

func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		Personality string `json:"personality"`
		Appearance  string `json:"appearance"`
		Scenario    string `json:"scenario"`
		ImgGen      bool   `json:"imgGen"`
		ImageModel  string `json:"imageModel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	c := &model.Character{
		Name:        in.Name,
		Path:        in.Path,
		Personality: in.Personality,
		Appearance:  in.Appearance,
		Scenario:    in.Scenario,
		ImgGen:      in.ImgGen,
		ImageModel:  in.ImageModel,
	}
	out, err := h.svc.Create(r.Context(), c)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	// ?path= resolves a single character by its url-safe path.
	if path := r.URL.Query().Get("path"); path != "" {
		c, err := h.svc.GetByPath(r.Context(), path)
		if err != nil {
			respond.WriteServiceError(w, err)
			return
		}
		respond.WriteJSON(w, http.StatusOK, []*model.Character{c})
		return
	}
	list, err := h.svc.List(r.Context())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), mux.Vars(r)["characterId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

func (h *CharacterHandler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["characterId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CharacterHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListEvents(r.Context(), mux.Vars(r)["characterId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

func (h *CharacterHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), mux.Vars(r)["eventId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CharacterHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPosts(r.Context(), mux.Vars(r)["characterId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}
