// invascope-server exposes the lag results of detection runs over HTTP,
// alongside health and Prometheus metrics endpoints.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ecosense/invascope/pkg/constants"
)

type lagRow struct {
	RunID     string `json:"run_id"`
	Platform  string `json:"platform"`
	Species   string `json:"species"`
	Country   string `json:"country"`
	Status    string `json:"status"`
	Reference string `json:"reference_date,omitempty"`
	Anomaly   string `json:"anomaly_date,omitempty"`
	LagDays   *int   `json:"lag_days,omitempty"`
	Error     string `json:"error,omitempty"`
}

type server struct {
	resultsPath string
	logger      *logrus.Logger
}

func main() {
	addr := flag.String("addr", constants.DefaultHTTPAddr, "listen address")
	results := flag.String("results", "./results.csv", "results CSV written by invascope detect")
	flag.Parse()

	logger := logrus.New()
	s := &server{resultsPath: *results, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/lags", s.handleLags).Methods(http.MethodGet)

	httpServer := &http.Server{Addr: *addr, Handler: router}

	go func() {
		logger.WithField("addr", *addr).Info("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
	}
	logger.Info("Server stopped")
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": constants.AppVersion})
}

// handleLags serves the latest result table. Filters: ?platform=, ?species=,
// ?country=, ?status=.
func (s *server) handleLags(w http.ResponseWriter, r *http.Request) {
	rows, err := s.loadResults()
	if err != nil {
		s.logger.WithError(err).Error("Loading results failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "results unavailable"})
		return
	}

	query := r.URL.Query()
	filtered := rows[:0]
	for _, row := range rows {
		if v := query.Get("platform"); v != "" && row.Platform != v {
			continue
		}
		if v := query.Get("species"); v != "" && row.Species != v {
			continue
		}
		if v := query.Get("country"); v != "" && row.Country != v {
			continue
		}
		if v := query.Get("status"); v != "" && row.Status != v {
			continue
		}
		filtered = append(filtered, row)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(filtered),
		"results": filtered,
	})
}

func (s *server) loadResults() ([]lagRow, error) {
	f, err := os.Open(s.resultsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Skip the header written by the file sink.
	if _, err := reader.Read(); err != nil {
		return nil, err
	}

	var rows []lagRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 9 {
			continue
		}
		row := lagRow{
			RunID:     record[0],
			Platform:  record[1],
			Species:   record[2],
			Country:   record[3],
			Status:    record[4],
			Reference: record[5],
			Anomaly:   record[6],
			Error:     record[8],
		}
		if record[7] != "" {
			if lag, err := strconv.Atoi(record[7]); err == nil {
				row.LagDays = &lag
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
