package store

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formagent/formagent/profile"
)

// Server is the HTTP surface over a Store.
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer creates the HTTP surface for a Store.
func NewServer(st *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, logger: logger}
}

// Handler builds the chi router:
//
//	GET  /health          liveness
//	GET  /data            full profile as JSON ({} when none saved)
//	POST /data            full-replacement profile write
//	GET  /mappings        learned mappings for ?domain= (&form_id=)
//	POST /mappings        save one mapping
//	POST /mappings/bulk   save several mappings for one domain
//	POST /interpret       suggest mappings for submitted form fields
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/data", s.handleGetData)
	r.Post("/data", s.handlePostData)
	r.Get("/mappings", s.handleGetMappings)
	r.Post("/mappings", s.handlePostMapping)
	r.Post("/mappings/bulk", s.handlePostBulkMappings)
	r.Post("/interpret", s.handleInterpret)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context())
	if err != nil {
		s.logger.Error("store: get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve user data")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid data format")
		return
	}

	if err := s.store.SaveProfile(r.Context(), &p); err != nil {
		s.logger.Error("store: save profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save user data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleGetMappings(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain parameter is required")
		return
	}

	mappings, err := s.store.Mappings(r.Context(), domain, r.URL.Query().Get("form_id"))
	if err != nil {
		s.logger.Error("store: get mappings", "domain", domain, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve form mappings")
		return
	}
	if mappings == nil {
		mappings = []Mapping{}
	}
	writeJSON(w, http.StatusOK, map[string][]Mapping{"mappings": mappings})
}

func (s *Server) handlePostMapping(w http.ResponseWriter, r *http.Request) {
	var m Mapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "no mapping data provided")
		return
	}
	if m.Domain == "" || m.FieldName == "" || m.UserField == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := s.store.SaveMapping(r.Context(), m); err != nil {
		s.logger.Error("store: save mapping", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save mapping")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handlePostBulkMappings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain   string    `json:"domain"`
		FormID   string    `json:"form_id"`
		Mappings []Mapping `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "no data provided")
		return
	}
	if req.Domain == "" || len(req.Mappings) == 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	ok := true
	for _, m := range req.Mappings {
		if m.FieldName == "" || m.UserField == "" {
			continue
		}
		m.Domain = req.Domain
		m.FormID = req.FormID
		if err := s.store.SaveMapping(r.Context(), m); err != nil {
			s.logger.Error("store: bulk save mapping", "field", m.FieldName, "error", err)
			ok = false
		}
	}

	if !ok {
		writeError(w, http.StatusInternalServerError, "failed to save some mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string      `json:"domain"`
		Fields []FieldInfo `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	writeJSON(w, http.StatusOK, Interpret(req.Domain, req.Fields))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
