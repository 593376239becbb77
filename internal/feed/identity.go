package feed

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/dyluth/aura/internal/reconcile"
	"github.com/gorilla/mux"
)

// Engine is the read side of one domain's reconcile engine.
type Engine interface {
	Domain() string
	Snapshot() map[reconcile.Key]string
	Lookup(anchorID, specID string) (string, bool)
}

// IdentityEntry maps one spec entry to the artifact rendering it.
type IdentityEntry struct {
	Domain     string `json:"domain"`
	AnchorID   string `json:"anchor_id"`
	SpecID     string `json:"spec_id"`
	ArtifactID string `json:"artifact_id"`
}

// ReconcileResponse lists the domains a pass was requested for.
type ReconcileResponse struct {
	Requested []string `json:"requested"`
}

type engineEntry struct {
	engine Engine
	manual chan<- struct{}
}

// WithEngine exposes an engine's identity map on /identity. Sends on manual
// request an on-demand pass; a nil manual disables POST /reconcile for the
// engine's domain.
func WithEngine(e Engine, manual chan<- struct{}) Option {
	return func(s *Server) {
		s.engines = append(s.engines, engineEntry{engine: e, manual: manual})
	}
}

// selectEngines returns the engines matching the optional ?domain= filter.
func (s *Server) selectEngines(r *http.Request) ([]engineEntry, error) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		return s.engines, nil
	}
	for _, e := range s.engines {
		if e.engine.Domain() == domain {
			return []engineEntry{e}, nil
		}
	}
	return nil, fmt.Errorf("no engine for domain %q", domain)
}

func (s *Server) identityHandler(w http.ResponseWriter, r *http.Request) {
	engines, err := s.selectEngines(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	entries := []IdentityEntry{}
	for _, e := range engines {
		domain := e.engine.Domain()
		for key, id := range e.engine.Snapshot() {
			entries = append(entries, IdentityEntry{
				Domain:     domain,
				AnchorID:   key.AnchorID,
				SpecID:     key.SpecID,
				ArtifactID: id,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.AnchorID != b.AnchorID {
			return a.AnchorID < b.AnchorID
		}
		return a.SpecID < b.SpecID
	})
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) lookupHandler(w http.ResponseWriter, r *http.Request) {
	engines, err := s.selectEngines(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	vars := mux.Vars(r)
	anchorID, specID := vars["anchor"], vars["spec"]
	var entries []IdentityEntry
	for _, e := range engines {
		if id, ok := e.engine.Lookup(anchorID, specID); ok {
			entries = append(entries, IdentityEntry{
				Domain:     e.engine.Domain(),
				AnchorID:   anchorID,
				SpecID:     specID,
				ArtifactID: id,
			})
		}
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no artifact for spec %s on anchor %s", specID, anchorID))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// reconcileHandler queues a pass on each selected engine. A pass already
// queued absorbs the request.
func (s *Server) reconcileHandler(w http.ResponseWriter, r *http.Request) {
	engines, err := s.selectEngines(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := ReconcileResponse{Requested: []string{}}
	for _, e := range engines {
		if e.manual == nil {
			continue
		}
		select {
		case e.manual <- struct{}{}:
		default:
		}
		resp.Requested = append(resp.Requested, e.engine.Domain())
	}
	s.logger.Info().Str("event_type", "reconcile_requested").Strs("domains", resp.Requested).Msg("reconcile_requested")
	writeJSON(w, http.StatusAccepted, resp)
}
