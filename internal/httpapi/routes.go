// Package httpapi exposes the search core over HTTP. It owns routing,
// serialization (JSON by default, XML on request) and the permissive
// parameter contract; all real work happens in internal/search.
package httpapi

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"priceradar-backend/internal/feed"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/search"
	"priceradar-backend/internal/source"
)

// Server bundles the request handlers and their dependencies.
type Server struct {
	search    *search.Service
	feed      *feed.Builder
	sources   *source.Registry
	retailers []model.Retailer
	log       *zap.Logger
}

// NewServer wires the HTTP surface.
func NewServer(svc *search.Service, fb *feed.Builder, sources *source.Registry, retailers []model.Retailer, log *zap.Logger) *Server {
	return &Server{
		search:    svc,
		feed:      fb,
		sources:   sources,
		retailers: retailers,
		log:       log.Named("http"),
	}
}

// RegisterRoutes wires all routes onto the router.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Use(requestIDMiddleware, s.loggingMiddleware, s.recoveryMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", s.productsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/by_ean/{gtin}", s.byGTINHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.productHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/similar", s.similarHandler).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.categoriesHandler).Methods(http.MethodGet)
	api.HandleFunc("/retailers", s.retailersHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)

	r.HandleFunc("/feed/google-merchant", s.feedHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// productsHandler is the unified ranked search over all sources.
func (s *Server) productsHandler(w http.ResponseWriter, r *http.Request) {
	q := search.NormalizeQuery(r.URL.Query())
	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, resp)
}

func (s *Server) productHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.search.ByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, source.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, rec)
}

// productList wraps list results so the XML rendering has a single root.
type productList struct {
	XMLName xml.Name                `json:"-" xml:"products"`
	Results []model.ScoredCandidate `json:"results" xml:"product"`
}

func (s *Server) byGTINHandler(w http.ResponseWriter, r *http.Request) {
	matches, err := s.search.ByGTIN(r.Context(), mux.Vars(r)["gtin"])
	if errors.Is(err, source.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, productList{Results: matches})
}

func (s *Server) similarHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw) // malformed values coerce to the default
	}
	matches, err := s.search.Similar(r.Context(), mux.Vars(r)["id"], limit)
	if errors.Is(err, source.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, productList{Results: matches})
}

func (s *Server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	q := search.NormalizeQuery(r.URL.Query())
	page, err := s.search.Categories(r.Context(), q.Term, q.Page, q.PageSize)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, page)
}

type retailerList struct {
	XMLName xml.Name         `json:"-" xml:"retailers"`
	Results []model.Retailer `json:"results" xml:"retailer"`
}

func (s *Server) retailersHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, retailerList{Results: s.retailers})
}

type healthPayload struct {
	XMLName xml.Name `json:"-" xml:"health"`
	Status  string   `json:"status" xml:"status"`
	Service string   `json:"service" xml:"service"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, healthPayload{Status: "healthy", Service: "priceradar-api"})
}

// statusHandler reports per-source product counts so operators can spot a
// stalled scraper or a broken store at a glance.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	type sourceStatus struct {
		Status   string `json:"status"`
		Products int    `json:"products"`
	}
	statuses := make(map[string]sourceStatus, len(s.sources.All()))
	operational := true
	for _, ad := range s.sources.All() {
		n, err := ad.Count(r.Context(), source.Filter{})
		if err != nil {
			statuses[string(ad.Tag())] = sourceStatus{Status: "unavailable"}
			operational = false
			continue
		}
		statuses[string(ad.Tag())] = sourceStatus{Status: "ok", Products: n}
	}
	overall := "operational"
	if !operational {
		overall = "degraded"
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  overall,
		"version": "1.0.0",
		"sources": statuses,
	})
}

func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	writeXML(w, r, http.StatusOK, s.feed.Build(r.Context()))
}

// apiMessage is the error payload shape shared by 404 and 500 responses.
type apiMessage struct {
	XMLName xml.Name `json:"-" xml:"message"`
	Detail  string   `json:"detail" xml:"detail"`
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusNotFound, apiMessage{Detail: "Product not found"})
}

// internalError hides pipeline failures behind a generic message; details go
// to the log only.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("path", r.URL.Path), zap.Error(err))
	s.respond(w, r, http.StatusInternalServerError, apiMessage{Detail: "internal error"})
}

// respond content-negotiates: XML when format=xml or the Accept header asks
// for it, JSON otherwise.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if wantsXML(r) {
		writeXML(w, r, status, payload)
		return
	}
	writeJSON(w, r, status, payload)
}

func wantsXML(r *http.Request) bool {
	if r.URL.Query().Get("format") == "xml" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/xml")
}
