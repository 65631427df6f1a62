package server

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"zorssms/apperr"
	"zorssms/models"
)

var (
	errBadJSON      = apperr.Validation("invalid request body")
	errMissingField = apperr.Validation("missing required field")
	errNoAvatar     = apperr.NotFound("avatar not set")
	errBadAvatar    = apperr.Internal("stored avatar is not a data URL")
)

// Handler returns the HTTP API including the websocket endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))

	r.Post("/api/register", s.handleRegister)
	r.Get("/api/user/{id}", s.handleGetUser)
	r.Get("/api/user/{id}/avatar", s.handleGetAvatar)
	r.Put("/api/user/profile", s.handleUpdateProfile)
	r.Post("/api/user/avatar", s.handleUpdateAvatar)

	r.Post("/api/friends/add", s.handleAddFriend)
	r.Get("/api/friends/{userId}", s.handleListFriends)
	r.Delete("/api/friends/remove/{userId}/{friendId}", s.handleRemoveFriend)

	r.Get("/api/messages/{userId}/{friendId}", s.handleHistoryHTTP)

	r.Get("/ws", s.handleWebsocket)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"online": s.router.Presence().Len(),
			"users":  s.router.Store().Stats().Users,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument, apperr.CodeSelfReference:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]any{
		"error": apperr.MessageOf(err),
		"code":  apperr.CodeOf(err),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := int64(s.config.MaxAvatarBytes)*2 + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, errBadJSON)
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	user, err := s.router.Store().Register(body.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("user registered", zap.String("user", user.ID), zap.String("name", user.Name))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.router.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleGetAvatar serves the decoded avatar image with a content hash ETag.
func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := s.router.Store().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user.Avatar == "" {
		s.writeError(w, r, errNoAvatar)
		return
	}

	mime, data, ok := decodeDataURL(user.Avatar)
	if !ok {
		s.writeError(w, r, errBadAvatar)
		return
	}

	sum := blake2b.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// decodeDataURL parses data:<mime>;base64,<payload>.
func decodeDataURL(s string) (mime string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, false
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return mime, data, true
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Bio    string `json:"bio"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		s.writeError(w, r, errMissingField)
		return
	}

	user, err := s.router.Store().UpdateBio(body.UserID, body.Bio)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Avatar string `json:"avatar"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		s.writeError(w, r, errMissingField)
		return
	}

	user, err := s.router.UpdateAvatar(body.UserID, body.Avatar)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		FriendID string `json:"friendId"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.UserID == "" || body.FriendID == "" {
		s.writeError(w, r, errMissingField)
		return
	}

	if err := s.router.AddFriend(body.UserID, body.FriendID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.ListFriends(chi.URLParam(r, "userId")))
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	err := s.router.RemoveFriend(chi.URLParam(r, "userId"), chi.URLParam(r, "friendId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHistoryHTTP(w http.ResponseWriter, r *http.Request) {
	history := s.router.Store().History(chi.URLParam(r, "userId"), chi.URLParam(r, "friendId"))
	if history == nil {
		history = []models.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}
