package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dispenser/core"
	"dispenser/standalone"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusSource is the read-only controller surface the server exposes
type StatusSource interface {
	Status() standalone.Status
	Diagnostics() *core.Diagnostics
}

// Server serves /metrics, /status, /mode and /diagnostics
type Server struct {
	src      StatusSource
	gatherer prometheus.Gatherer
	log      *logrus.Entry
}

// NewServer creates a diagnostic server
func NewServer(src StatusSource, gatherer prometheus.Gatherer, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		src:      src,
		gatherer: gatherer,
		log:      log.WithFields(logrus.Fields{"component": "metrics"}),
	}
}

// Router builds the request router
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/mode", s.modeHandler).Methods(http.MethodGet)
	r.HandleFunc("/diagnostics", s.diagnosticsHandler).Methods(http.MethodGet)
	r.HandleFunc("/diagnostics", s.clearDiagnosticsHandler).Methods(http.MethodDelete)
	// for Prometheus
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"addr": addr}).Info("serving diagnostics")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "Metrics: ListenAndServe()")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.src.Status())
}

func (s *Server) modeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(s.src.Status().Mode.String() + "\n")); err != nil {
		s.log.WithError(err).Error("write failed")
	}
}

func (s *Server) diagnosticsHandler(w http.ResponseWriter, r *http.Request) {
	diag := s.src.Diagnostics()
	s.writeJSON(w, struct {
		Total  uint64                 `json:"total"`
		Events []core.DiagnosticEvent `json:"events"`
	}{diag.Total(), diag.Snapshot()})
}

func (s *Server) clearDiagnosticsHandler(w http.ResponseWriter, r *http.Request) {
	s.src.Diagnostics().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithFields(logrus.Fields{"func": "writeJSON"}).Errorf("Encode() failed: %s", err)
	}
}
