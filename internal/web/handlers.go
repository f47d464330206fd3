package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"querydesk/internal/auth"
	"querydesk/internal/search"
	"querydesk/internal/storage"
)

type pageData struct {
	Title    string
	Error    string
	Username string
	Email    string
	Query    string
	Current  *search.Result
	History  []storage.Chat
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, page, data); err != nil {
		s.logger.Error().Err(err).Str("page", page).Msg("render template")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode json response")
	}
}

func (s *Server) registerPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "register.html", pageData{Title: "Register"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if _, err := s.auth.Register(r.Context(), username, email, password); err != nil {
		status := http.StatusBadRequest
		if !isValidation(err) {
			status = http.StatusInternalServerError
			s.logger.Error().Err(err).Msg("registration failed")
		}
		s.render(w, status, "register.html", pageData{
			Title:    "Register",
			Error:    auth.Message(err),
			Username: username,
			Email:    email,
		})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) loginPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "login.html", pageData{Title: "Log in"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	u, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, auth.ErrTooManyAttempts):
			status = http.StatusTooManyRequests
		case !isValidation(err):
			status = http.StatusInternalServerError
			s.logger.Error().Err(err).Msg("login failed")
		}
		s.render(w, status, "login.html", pageData{Title: "Log in", Error: auth.Message(err), Email: email})
		return
	}

	if _, err := s.sessions.Issue(r.Context(), w, u.ID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Msg("issue session")
		s.render(w, http.StatusInternalServerError, "login.html", pageData{
			Title: "Log in",
			Error: "An error occurred during login. Please try again.",
			Email: email,
		})
		return
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("user logged in")
	http.Redirect(w, r, "/ghat", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), w, r); err != nil {
		s.logger.Error().Err(err).Msg("destroy session")
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) ghat(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "ghat.html", pageData{Title: "EGPT"})
}

// chatPage lists the history and, when ?query= is set, runs it first so the
// new exchange shows at the top.
func (s *Server) chatPage(w http.ResponseWriter, r *http.Request) {
	uid := userID(r.Context())
	query := r.URL.Query().Get("query")
	data := pageData{Title: "Chat", Query: query}

	if query != "" {
		res := s.search.Process(r.Context(), uid, query)
		data.Current = &res
	}

	history, err := s.history.ListChats(r.Context(), uid, s.historyLimit)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", uid).Msg("list chats")
		data.Error = "An error occurred. Please try again."
		s.render(w, http.StatusInternalServerError, "chat.html", data)
		return
	}
	data.History = history
	s.render(w, http.StatusOK, "chat.html", data)
}

func (s *Server) chatQuery(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.PostFormValue("query"))
	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Query cannot be empty"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.search.Process(r.Context(), userID(r.Context()), query))
}

func (s *Server) servePDF(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}

	f, info, err := s.pdfs.Open(name)
	if err != nil {
		s.logger.Warn().Str("filename", name).Msg("pdf not found")
		http.Error(w, "PDF not found.", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "healthy",
		"database":   "connected",
		"pdf_folder": s.pdfs.Path(),
	})
}

func isValidation(err error) bool {
	for _, target := range []error{
		auth.ErrMissingFields,
		auth.ErrInvalidEmail,
		auth.ErrEmailTaken,
		auth.ErrUsernameTaken,
		auth.ErrInvalidCredentials,
		auth.ErrTooManyAttempts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
