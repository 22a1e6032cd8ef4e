// Package devserver is a local stand-in for the article and comment backend. It serves
// the same REST contract and streams created comments over a WebSocket.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/push"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
)

const maxBodySize = 1 << 20

type Config struct {
	ServiceName string
	// APIKey is the tenant key every request except reads must carry.
	APIKey   string
	Username string
	Password string
	TokenTTL time.Duration
	// Moderator, when set, rejects comments whose content it flags.
	Moderator Moderator
}

// Moderator is satisfied by *moderation.Filter.
type Moderator interface {
	Check(content string) bool
}

type API struct {
	ServiceName string
	DB          storage.Storage
	Router      *mux.Router

	conf   Config
	kw     MessageWriter
	hub    *Hub
	tokens *tokenStore
}

// New wires the routes. kw may be nil, in which case requests are not logged to Kafka.
func New(conf Config, db storage.Storage, kw MessageWriter) *API {
	if conf.TokenTTL <= 0 {
		conf.TokenTTL = time.Hour
	}

	api := API{
		ServiceName: conf.ServiceName,
		DB:          db,
		Router:      mux.NewRouter(),
		conf:        conf,
		kw:          kw,
		hub:         NewHub(),
		tokens:      newTokenStore(conf.TokenTTL),
	}
	api.endpoints()

	return &api
}

func (api *API) endpoints() {
	api.Router.Use(api.requestIDMiddleware)
	api.Router.Use(api.headerMiddleware)

	if api.kw != nil {
		api.Router.Use(api.loggingMiddleware(api.kw))
	}

	api.Router.HandleFunc("/login", api.loginHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/articles/{id}", api.articleHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/ws", api.streamHandler).Methods(http.MethodGet)

	authed := api.Router.NewRoute().Subrouter()
	authed.Use(api.authMiddleware)
	authed.HandleFunc("/articles", api.addArticleHandler).Methods(http.MethodPost)
	authed.HandleFunc("/comments", api.createCommentHandler).Methods(http.MethodPost)
	authed.HandleFunc("/comments/{id}/vote/{dir:up|down}", api.voteHandler).Methods(http.MethodPost)
}

// Hub exposes the comment stream, e.g. to count subscribers.
func (api *API) Hub() *Hub {
	return api.hub
}

// Close drops every stream subscriber.
func (api *API) Close() {
	api.hub.Close()
}

func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Header.Get(headerAPIKey) != api.conf.APIKey {
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		log.Debugf("[loginHandler][%s] invalid API key from %v", sID, r.RemoteAddr)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Bad Request: invalid JSON", http.StatusBadRequest)
		log.Debugf("[loginHandler][%s] invalid JSON: %v", sID, err)
		return
	}
	if req.Username != api.conf.Username || req.Password != api.conf.Password {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		log.Infof("[loginHandler][%s] failed login for %q", sID, req.Username)
		return
	}

	token, err := api.tokens.Issue()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[loginHandler][%s] failed to issue token: %v", sID, err)
		return
	}

	writeJSON(w, r, http.StatusOK, token)
	log.Debugf("[loginHandler][%s] token issued to %q", sID, req.Username)
}

func (api *API) articleHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := mux.Vars(r)["id"]

	article, err := api.DB.Article(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrArticleNotFound) {
			http.Error(w, "Article not found", http.StatusNotFound)
			log.Debugf("[articleHandler][%s] article %s: %v", sID, id, err)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[articleHandler][%s] article %s: %v", sID, id, err)
		return
	}

	writeJSON(w, r, http.StatusOK, article)
	log.Debugf("[articleHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) addArticleHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var article models.ArticleDetail
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&article); err != nil {
		http.Error(w, "Bad Request: invalid JSON", http.StatusBadRequest)
		log.Debugf("[addArticleHandler][%s] invalid JSON: %v", sID, err)
		return
	}
	if strings.TrimSpace(article.Title) == "" {
		http.Error(w, "Bad Request: missing title", http.StatusBadRequest)
		return
	}

	article, err := api.DB.AddArticle(r.Context(), article)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[addArticleHandler][%s] AddArticle() returned error: %v", sID, err)
		return
	}
	article.Comments = []models.Comment{}

	writeJSON(w, r, http.StatusCreated, article)
	log.Infof("[addArticleHandler][%s] article %s created", sID, article.ID)
}

func (api *API) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req models.NewComment
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Bad Request: invalid JSON", http.StatusBadRequest)
		log.Debugf("[createCommentHandler][%s] invalid JSON: %v", sID, err)
		return
	}

	author := req.Author
	if author == "" {
		author = api.conf.Username
	}
	content := strings.TrimSpace(req.Content)

	if api.conf.Moderator != nil && api.conf.Moderator.Check(content) {
		http.Error(w, "Comment rejected by moderation", http.StatusUnprocessableEntity)
		log.Infof("[createCommentHandler][%s] comment on article %s rejected by moderation", sID, req.ArticleID)
		return
	}

	comment, err := api.DB.CreateComment(r.Context(), models.Comment{
		ArticleID: req.ArticleID,
		Author:    author,
		Content:   content,
	})
	switch {
	case errors.Is(err, storage.ErrArticleIDNotProvided), errors.Is(err, storage.ErrEmptyContent):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		log.Debugf("[createCommentHandler][%s] %v", sID, err)
		return
	case errors.Is(err, storage.ErrArticleNotFound):
		http.Error(w, "Article not found", http.StatusNotFound)
		log.Debugf("[createCommentHandler][%s] article %s: %v", sID, req.ArticleID, err)
		return
	case err != nil:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[createCommentHandler][%s] CreateComment() returned error: %v", sID, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, comment)
	api.hub.Broadcast(push.Envelope{ChangeType: push.ChangeCreated, Comment: comment})
	log.Infof("[createCommentHandler][%s] comment %s created on article %s", sID, comment.ID, comment.ArticleID)
}

func (api *API) voteHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	vars := mux.Vars(r)

	delta := 1
	if vars["dir"] == "down" {
		delta = -1
	}

	comment, err := api.DB.AdjustScore(r.Context(), vars["id"], delta)
	if err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			http.Error(w, "Comment not found", http.StatusNotFound)
			log.Debugf("[voteHandler][%s] comment %s: %v", sID, vars["id"], err)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[voteHandler][%s] AdjustScore() returned error: %v", sID, err)
		return
	}

	writeJSON(w, r, http.StatusOK, comment)
	log.Debugf("[voteHandler][%s] comment %s score %d", sID, comment.ID, comment.Score)
}

func (api *API) streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("apiKey") != api.conf.APIKey {
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		log.Debugf("[streamHandler][%s] invalid API key from %v", shorten(GetRequestID(r.Context())), r.RemoteAddr)
		return
	}

	api.hub.Serve(w, r)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[server][%s] failed to encode response data: %v", shorten(GetRequestID(r.Context())), err)
	}
}

// GetRequestID extracts the request ID from the context, or returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates s to 6 characters followed by '...' when it is longer.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
