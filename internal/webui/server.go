// Package webui serves the order up web frontend. It renders orders fetched
// from the orders api and forwards form submissions to it.
package webui

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").
	Funcs(template.FuncMap{"field": Order.Field, "deletePath": Order.DeletePath}).
	ParseFS(templateFS, "templates/index.html"))

// Orders is what the frontend needs from the api.
type Orders interface {
	List(ctx context.Context) ([]Order, error)
	Put(ctx context.Context, order Order) (Order, error)
	Delete(ctx context.Context, id string) error
}

type Server struct {
	orders Orders
	router *mux.Router
}

func NewServer(orders Orders) *Server {
	// Ids may contain "/", so routes match the escaped path.
	s := &Server{orders: orders, router: mux.NewRouter().UseEncodedPath()}
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/orders", s.handleCreate).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/{id}/delete", s.handleDelete).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type pageData struct {
	Orders []Order
	Error  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.List(r.Context())
	if err != nil {
		slog.Error("listing orders", slog.Any("error", err))
		s.render(w, http.StatusBadGateway, pageData{Error: "The orders service is unavailable."})
		return
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID() < orders[j].ID() })
	s.render(w, http.StatusOK, pageData{Orders: orders})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	order := Order{}
	for _, field := range []string{"id", "customer", "dish", "quantity"} {
		if v := strings.TrimSpace(r.PostForm.Get(field)); v != "" {
			order[field] = v
		}
	}
	if order["dish"] == nil {
		http.Error(w, "dish is required", http.StatusBadRequest)
		return
	}

	created, err := s.orders.Put(r.Context(), order)
	if err != nil {
		slog.Error("creating order", slog.Any("error", err))
		http.Error(w, "the orders service rejected the order", http.StatusBadGateway)
		return
	}
	slog.Info("order placed", slog.String("id", created.ID()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if err := s.orders.Delete(r.Context(), id); err != nil {
		slog.Error("deleting order", slog.String("id", id), slog.Any("error", err))
		http.Error(w, "the orders service could not delete the order", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("rendering page", slog.Any("error", err))
	}
}
