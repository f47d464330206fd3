// Package web serves the browser-facing routes: account pages, the chat
// page and its JSON endpoint, PDF downloads, health and metrics.
package web

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"querydesk/internal/search"
	"querydesk/internal/session"
	"querydesk/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (storage.User, error)
	Login(ctx context.Context, email, password string) (storage.User, error)
}

type Sessions interface {
	Issue(ctx context.Context, w http.ResponseWriter, userID int64) (session.Session, error)
	Current(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

type Users interface {
	GetUserByID(ctx context.Context, id int64) (storage.User, error)
}

type Searcher interface {
	Process(ctx context.Context, userID int64, query string) search.Result
}

type History interface {
	ListChats(ctx context.Context, userID int64, limit int) ([]storage.Chat, error)
}

type PDFs interface {
	Open(name string) (*os.File, fs.FileInfo, error)
	Path() string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Auth     Authenticator
	Sessions Sessions
	Users    Users
	Search   Searcher
	History  History
	PDFs     PDFs
	DB       Pinger
	Logger   zerolog.Logger
	// Metrics defaults to the default Prometheus registry handler.
	Metrics http.Handler
	// HistoryLimit caps rows on the chat page; 0 shows everything.
	HistoryLimit int
}

type Server struct {
	auth         Authenticator
	sessions     Sessions
	users        Users
	search       Searcher
	history      History
	pdfs         PDFs
	db           Pinger
	logger       zerolog.Logger
	metrics      http.Handler
	historyLimit int
	pages        *template.Template
}

func NewServer(cfg Config) (*Server, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	mh := cfg.Metrics
	if mh == nil {
		mh = promhttp.Handler()
	}
	return &Server{
		auth:         cfg.Auth,
		sessions:     cfg.Sessions,
		users:        cfg.Users,
		search:       cfg.Search,
		history:      cfg.History,
		pdfs:         cfg.PDFs,
		db:           cfg.DB,
		logger:       cfg.Logger,
		metrics:      mh,
		historyLimit: cfg.HistoryLimit,
		pages:        pages,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Get("/register", s.registerPage)
	r.Post("/register", s.register)
	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Get("/logout", s.logout)

	r.Get("/pdfs/{filename}", s.servePDF)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/ghat", s.ghat)
		r.Get("/chat", s.chatPage)
		r.Post("/chat", s.chatQuery)
	})

	return r
}
