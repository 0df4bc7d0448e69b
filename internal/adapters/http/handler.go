package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/app/collab"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/app/setting"
	"inkwell/internal/domain"
	"inkwell/internal/registry"
)

type Server struct {
	collab   *collab.Service
	settings *setting.Service
	registry *registry.Registry
}

func NewServer(collabSvc *collab.Service, settingSvc *setting.Service, reg *registry.Registry) http.Handler {
	s := &Server{collab: collabSvc, settings: settingSvc, registry: reg}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// /sessions           → POST: create session, GET: list by story
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}                               → GET
	// /sessions/{id}/messages                      → POST
	// /sessions/{id}/generate                      → POST
	// /sessions/{id}/archive                       → POST
	// /sessions/{id}/merge                         → GET
	// /sessions/{id}/suggestions                   → GET
	// /sessions/{id}/suggestions/{mid}/accept      → POST
	// /sessions/{id}/suggestions/{mid}/reject      → POST
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /setting-sessions → POST: start a themed setting session
	mux.HandleFunc("/setting-sessions", s.handleSettingSessions)

	// /stories/{id}/settings/{type} → GET / PUT
	mux.HandleFunc("/stories/", s.handleStories)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	StoryID string   `json:"story_id"`
	Title   string   `json:"title,omitempty"`
	RoleIDs []string `json:"role_ids"`
}

type sessionResponse struct {
	ID           string         `json:"id"`
	StoryID      string         `json:"story_id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Participants []roleResponse `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Capability  string `json:"capability"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	Speaker    string    `json:"speaker"`
	Content    string    `json:"content"`
	Suggestion string    `json:"suggestion,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type getSessionResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type generateRequest struct {
	RoleIDs       []string `json:"role_ids"`
	StoryContext  string   `json:"story_context,omitempty"`
	CharacterInfo string   `json:"character_info,omitempty"`
	Style         string   `json:"style,omitempty"`
}

type generateResultResponse struct {
	RoleID    string           `json:"role_id"`
	RequestID string           `json:"request_id"`
	Message   *messageResponse `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Dropped   bool             `json:"dropped,omitempty"`
}

type generateResponse struct {
	Results []generateResultResponse `json:"results"`
}

type mergeResponse struct {
	Content string `json:"content"`
}

type startSettingSessionRequest struct {
	StoryID          string `json:"story_id"`
	Type             string `json:"type"`
	CurrentContent   string `json:"current_content,omitempty"`
	ExistingSettings string `json:"existing_settings,omitempty"`
	Requirements     string `json:"requirements,omitempty"`
}

type startSettingSessionResponse struct {
	Session sessionResponse          `json:"session"`
	Results []generateResultResponse `json:"results"`
}

type settingResponse struct {
	StoryID   string    `json:"story_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type saveSettingRequest struct {
	Content string `json:"content"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id}/...
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := domain.SessionID(parts[0])

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGetSession(w, r, id)

	case len(parts) == 2 && parts[1] == "messages":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleSendMessage(w, r, id)

	case len(parts) == 2 && parts[1] == "generate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleGenerate(w, r, id)

	case len(parts) == 2 && parts[1] == "archive":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleArchive(w, r, id)

	case len(parts) == 2 && parts[1] == "merge":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleMerge(w, r, id)

	case len(parts) == 2 && parts[1] == "suggestions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handlePendingSuggestions(w, r, id)

	case len(parts) == 4 && parts[1] == "suggestions" && (parts[3] == "accept" || parts[3] == "reject"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleSuggestionDecision(w, r, id, domain.MessageID(parts[2]), parts[3])

	default:
		http.NotFound(w, r)
	}
}

// /stories/{id}/settings/{type}
func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/stories/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "settings" || parts[2] == "" {
		http.NotFound(w, r)
		return
	}
	storyID := domain.StoryID(parts[0])
	settingType := domain.SettingType(parts[2])

	switch r.Method {
	case http.MethodGet:
		s.handleGetSetting(w, r, storyID, settingType)
	case http.MethodPut:
		s.handleSaveSetting(w, r, storyID, settingType)
	default:
		methodNotAllowed(w)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.StoryID == "" {
		badRequest(w, "story_id is required")
		return
	}
	if len(req.RoleIDs) == 0 {
		badRequest(w, "role_ids is required")
		return
	}

	roles := make([]domain.Role, 0, len(req.RoleIDs))
	for _, id := range req.RoleIDs {
		role, err := s.registry.Get(domain.RoleID(id))
		if err != nil {
			writeError(w, err)
			return
		}
		roles = append(roles, role)
	}

	session, err := s.collab.CreateSession(r.Context(), collab.CreateSessionInput{
		StoryID: domain.StoryID(req.StoryID),
		Title:   req.Title,
		Roles:   roles,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	storyID := r.URL.Query().Get("story_id")
	if storyID == "" {
		badRequest(w, "story_id query parameter is required")
		return
	}

	sessions, err := s.collab.ListSessions(r.Context(), domain.StoryID(storyID))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionResponse(session))
	}
	writeJSON(w, http.StatusOK, map[string][]sessionResponse{"sessions": out})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.collab.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		Session:  toSessionResponse(session),
		Messages: toMessagesResponse(session.Messages()),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	msg, err := s.collab.AddMessage(r.Context(), collab.AddMessageInput{
		SessionID: id,
		Speaker:   domain.SpeakerUser,
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toMessageResponse(*msg)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	roleIDs := make([]domain.RoleID, 0, len(req.RoleIDs))
	for _, rid := range req.RoleIDs {
		roleIDs = append(roleIDs, domain.RoleID(rid))
	}

	results, err := s.collab.GenerateResponses(r.Context(), collab.GenerateInput{
		SessionID: id,
		RoleIDs:   roleIDs,
		Extras: dispatch.Extras{
			StoryContext:  req.StoryContext,
			CharacterInfo: req.CharacterInfo,
			Style:         req.Style,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Results: toResultsResponse(results)})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.collab.Archive(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	content, err := s.collab.MergeAccepted(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeResponse{Content: content})
}

func (s *Server) handlePendingSuggestions(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	pending, err := s.collab.PendingSuggestions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]messageResponse{
		"suggestions": toMessagesResponse(pending),
	})
}

func (s *Server) handleSuggestionDecision(w http.ResponseWriter, r *http.Request, id domain.SessionID, messageID domain.MessageID, decision string) {
	var err error
	if decision == "accept" {
		err = s.collab.AcceptSuggestion(r.Context(), id, messageID)
	} else {
		err = s.collab.RejectSuggestion(r.Context(), id, messageID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": decision + "ed"})
}

func (s *Server) handleSettingSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req startSettingSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.StoryID == "" {
		badRequest(w, "story_id is required")
		return
	}

	session, results, err := s.settings.StartSession(r.Context(), domain.StoryID(req.StoryID), setting.Context{
		Type:             domain.SettingType(req.Type),
		CurrentContent:   req.CurrentContent,
		ExistingSettings: req.ExistingSettings,
		Requirements:     req.Requirements,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startSettingSessionResponse{
		Session: toSessionResponse(session),
		Results: toResultsResponse(results),
	})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request, storyID domain.StoryID, t domain.SettingType) {
	stng, err := s.settings.GetSetting(r.Context(), storyID, t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{
		StoryID:   string(stng.StoryID),
		Type:      string(stng.Type),
		Content:   stng.Content,
		UpdatedAt: stng.UpdatedAt,
	})
}

func (s *Server) handleSaveSetting(w http.ResponseWriter, r *http.Request, storyID domain.StoryID, t domain.SettingType) {
	var req saveSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.settings.SaveSetting(r.Context(), storyID, t, req.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ─────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	resp := sessionResponse{
		ID:        string(s.ID),
		StoryID:   string(s.StoryID),
		Title:     s.Title,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, p := range s.Participants {
		resp.Participants = append(resp.Participants, roleResponse{
			ID:          string(p.Role.ID),
			Name:        p.Role.Name,
			Description: p.Role.Description,
			Capability:  string(p.Role.Capability),
		})
	}
	return resp
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:         string(m.ID),
		Speaker:    string(m.Speaker),
		Content:    m.Content,
		Suggestion: string(m.Suggestion),
		Kind:       string(m.Kind),
		Timestamp:  m.Timestamp,
	}
}

func toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toResultsResponse(results []collab.RoleResult) []generateResultResponse {
	out := make([]generateResultResponse, 0, len(results))
	for _, res := range results {
		rr := generateResultResponse{
			RoleID:    string(res.RoleID),
			RequestID: res.RequestID,
			Dropped:   res.Dropped,
		}
		if res.Message != nil {
			m := toMessageResponse(*res.Message)
			rr.Message = &m
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		out = append(out, rr)
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		archived   *domain.ArchivedError
		suggestion *domain.SuggestionStateError
		generation *domain.GenerationError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &archived):
		writeJSON(w, http.StatusConflict, map[string]string{"error": archived.Error()})
	case errors.As(err, &suggestion):
		writeJSON(w, http.StatusConflict, map[string]string{"error": suggestion.Error()})
	case errors.As(err, &generation):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": generation.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
