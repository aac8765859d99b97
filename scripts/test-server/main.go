// Command test-server is a local target for the example benchmarks.
package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadphase/internal/log"
)

func main() {
	var (
		addr      string
		delay     time.Duration
		jitter    time.Duration
		errorRate float64
	)
	cmd := &cobra.Command{
		Use:   "test-server",
		Short: "Serve the endpoints used by examples/shop.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(addr, delay, jitter, errorRate)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 0, "base response delay")
	cmd.Flags().DurationVar(&jitter, "jitter", 0, "random extra delay")
	cmd.Flags().Float64Var(&errorRate, "error-rate", 0, "fraction of item requests answered with 500")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(addr string, delay, jitter time.Duration, errorRate float64) error {
	log.Configure(log.Config{Pretty: true, Service: "test-server"})
	logger := log.Base()

	var requests atomic.Int64
	pause := func() {
		d := delay
		if jitter > 0 {
			d += time.Duration(rand.Int63n(int64(jitter)))
		}
		if d > 0 {
			time.Sleep(d)
		}
	}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		pause()
		writeJSON(w, http.StatusOK, map[string]any{"auth": map[string]string{"token": uuid.NewString()}})
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		pause()
		if errorRate > 0 && rand.Float64() < errorRate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/items/")
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "name": "item " + id, "price": 9.99})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"requests": requests.Load()})
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	logger.Info().Str("addr", addr).Dur("delay", delay).Dur("jitter", jitter).Msg("starting test server")
	if err := server.ListenAndServe(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}
