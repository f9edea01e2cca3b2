package api

import (
	"github.com/gorilla/mux"

	"github.com/reverie-ai/reverie/internal/api/recovery"
	"github.com/reverie-ai/reverie/internal/services"
)

// Handlers bundles the constructed handler set for the router.
type Handlers struct {
	Users      *services.UserService
	Characters *services.CharacterService
	Threads    *services.ThreadService
	Responses  *services.ResponseService
	Posts      *services.PostService
	IsHealthy  func() bool
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	userHandler := NewUserHandler(h.Users)
	characterHandler := NewCharacterHandler(h.Characters)
	threadHandler := NewThreadHandler(h.Threads, h.Responses)
	postHandler := NewPostHandler(h.Posts)
	healthHandler := NewHealthHandler(h.IsHealthy)

	// Health endpoint
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// User endpoints
	router.HandleFunc("/api/users", userHandler.CreateUser).Methods("POST")
	router.HandleFunc("/api/users/{userId}", userHandler.GetUser).Methods("GET")
	router.HandleFunc("/api/users/{userId}/threads", threadHandler.ListThreads).Methods("GET")

	// Character endpoints
	router.HandleFunc("/api/characters", characterHandler.CreateCharacter).Methods("POST")
	router.HandleFunc("/api/characters", characterHandler.ListCharacters).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}", characterHandler.GetCharacter).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}", characterHandler.DeleteCharacter).Methods("DELETE")
	router.HandleFunc("/api/characters/{characterId}/events", characterHandler.ListEvents).Methods("GET")
	router.HandleFunc("/api/characters/{characterId}/posts", characterHandler.ListPosts).Methods("GET")
	router.HandleFunc("/api/events/{eventId}", characterHandler.DeleteEvent).Methods("DELETE")

	// Thread endpoints
	router.HandleFunc("/api/threads", threadHandler.CreateThread).Methods("POST")
	router.HandleFunc("/api/threads/{threadId}", threadHandler.GetThread).Methods("GET")
	router.HandleFunc("/api/threads/{threadId}/messages", threadHandler.ListMessages).Methods("GET")
	router.HandleFunc("/api/threads/{threadId}/messages", threadHandler.PostMessage).Methods("POST")
	router.HandleFunc("/api/threads/{threadId}/messages/{messageId}", threadHandler.DeleteMessageFrom).Methods("DELETE")
	router.HandleFunc("/api/threads/{threadId}/respond", threadHandler.RespondNow).Methods("POST")

	// Post endpoints
	router.HandleFunc("/api/posts/{postId}", postHandler.GetPost).Methods("GET")
	router.HandleFunc("/api/posts/{postId}/comments", postHandler.CreateComment).Methods("POST")
	router.HandleFunc("/api/posts/{postId}/comments", postHandler.ListComments).Methods("GET")
	router.HandleFunc("/api/posts/{postId}/likes", postHandler.CreateLike).Methods("POST")
	router.HandleFunc("/api/posts/{postId}/likes", postHandler.ListLikes).Methods("GET")

	return router
}
