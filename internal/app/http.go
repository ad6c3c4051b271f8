package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/authpw"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

const (
	sessionCookie = "session"
	maxBodyBytes  = 1 << 20
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Head("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Post("/auth/signup", s.handleAuthSignUp)
		r.Post("/auth/signin", s.handleAuthSignIn)
		r.Get("/session", s.handleSession)
		r.Post("/session/refresh", s.handleRefresh)
		r.Post("/session/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/get_user_questions", s.handleUserQuestions)
			r.Post("/add_user_question", s.handleAddQuestion)
			r.Put("/update_user_question/{questionID}", s.handleUpdateQuestion)
			r.Delete("/delete_user_question/{questionID}", s.handleDeleteQuestion)
			r.Get("/search_questions", s.handleSearchQuestions)

			r.Post("/add_client", s.handleAddClient)
			r.Get("/existing_clients", s.handleListClients)

			r.Get("/check_intake_form/{clientID}", s.handleCheckIntakeForm)
			r.Post("/add_intake_form", s.handleAddIntakeForm)
			r.Get("/get_saved_answers", s.handleSavedAnswers)
			r.Post("/auto_save_intake_form", s.handleAutoSave)
			r.Post("/update_intake_form_status", s.handleUpdateFormStatus)
			r.Post("/final_intake_save", s.handleFinalSave)

			r.Post("/create_client_summary/{clientID}", s.handleCreateSummary)
			r.Get("/client_summaries/{clientID}", s.handleClientSummaries)

			r.Get("/export_intake_form/{formID}", s.handleExport)

			r.Get("/intake_templates", s.handleListTemplates)
			r.Post("/intake_templates", s.handleSaveTemplate)
			r.Get("/intake_templates/{hash}", s.handleGetTemplate)

			r.Get("/drafts/{key}", s.handleGetDraft)
			r.Put("/drafts/{key}", s.handlePutDraft)
			r.Delete("/drafts/{key}", s.handleDeleteDraft)
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	current, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Password:  body.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusCreated, current)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	current, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, current)
}

func writeSession(w http.ResponseWriter, status int, current Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    current.Token,
		Path:     "/",
		Expires:  current.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, map[string]any{
		"accessToken":  current.Token,
		"refreshToken": current.RefreshToken,
		"trainerId":    current.TrainerID,
		"userName":     current.UserName,
		"role":         current.Role,
		"expiresAt":    current.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": current.UserName, "trainerId": current.TrainerID, "role": current.Role})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	current, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeSession(w, http.StatusOK, current)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	current := Session{}
	if token := requestToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			current = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), current, body.RefreshToken)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUserQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.service.UserQuestions(r.Context(), sessionFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *HTTPServer) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var body QuestionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	question, err := s.service.AddQuestion(r.Context(), sessionFrom(r), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (s *HTTPServer) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	var body QuestionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	question, err := s.service.UpdateQuestion(r.Context(), sessionFrom(r), questionID, body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (s *HTTPServer) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	if err := s.service.DeleteQuestion(r.Context(), sessionFrom(r), questionID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSearchQuestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	response, err := s.service.SearchQuestions(r.Context(), sessionFrom(r), query.Get("q"), query.Get("category"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleAddClient(w http.ResponseWriter, r *http.Request) {
	var body ClientInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	client, err := s.service.AddClient(r.Context(), sessionFrom(r), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *HTTPServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.service.ListClients(r.Context(), sessionFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *HTTPServer) handleCheckIntakeForm(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}
	check, err := s.service.CheckIntakeForm(r.Context(), sessionFrom(r), clientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *HTTPServer) handleAddIntakeForm(w http.ResponseWriter, r *http.Request) {
	var body AddFormInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	formID, err := s.service.AddIntakeForm(r.Context(), sessionFrom(r), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"form_id": formID})
}

func (s *HTTPServer) handleSavedAnswers(w http.ResponseWriter, r *http.Request) {
	clientID, errClient := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	formID, errForm := strconv.ParseInt(r.URL.Query().Get("form_id"), 10, 64)
	if errClient != nil || errForm != nil || clientID <= 0 || formID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "client_id and form_id are required", nil)
		return
	}
	records, err := s.service.SavedAnswers(r.Context(), sessionFrom(r), clientID, formID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": records})
}

func (s *HTTPServer) handleAutoSave(w http.ResponseWriter, r *http.Request) {
	var body AutoSaveInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	formID, err := s.service.AutoSave(r.Context(), sessionFrom(r), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"form_id": formID})
}

func (s *HTTPServer) handleUpdateFormStatus(w http.ResponseWriter, r *http.Request) {
	var body StatusInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.UpdateFormStatus(r.Context(), sessionFrom(r), body); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleFinalSave(w http.ResponseWriter, r *http.Request) {
	var body FinalSaveInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.FinalSave(r.Context(), sessionFrom(r), body); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateSummary(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}
	var body SummaryInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	created, err := s.service.CreateClientSummary(r.Context(), sessionFrom(r), clientID, body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "summary_id": created.ID})
}

func (s *HTTPServer) handleClientSummaries(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "clientID")
	if !ok {
		return
	}
	items, err := s.service.ClientSummaries(r.Context(), sessionFrom(r), clientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": items})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	formID, ok := pathID(w, r, "formID")
	if !ok {
		return
	}
	result, err := s.service.ExportIntakeForm(r.Context(), sessionFrom(r), formID, r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	header := w.Header()
	header.Set("Content-Type", result.MimeType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	if result.URL != "" {
		header.Set("X-Archive-URL", result.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context(), sessionFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *HTTPServer) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplateInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	revision, err := s.service.SaveTemplate(r.Context(), sessionFrom(r), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, revision)
}

func (s *HTTPServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, revision, err := s.service.GetTemplate(r.Context(), sessionFrom(r), chi.URLParam(r, "hash"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": tmpl, "revision": revision})
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	value, err := s.service.GetDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (s *HTTPServer) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.PutDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "key"), body.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionKey struct{}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		current, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, current)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) Session {
	current, _ := r.Context().Value(sessionKey{}).(Session)
	return current
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Archive-URL, Content-Disposition")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// requestToken reads the bearer token, falling back to the session cookie.
func requestToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}
