package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tradehall.gg/internal/hall"
	"tradehall.gg/internal/persistence/homestore"
	persistlog "tradehall.gg/internal/persistence/log"
	"tradehall.gg/internal/transport/ws"
	"tradehall.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		hallID     = flag.String("hall", "hall_1", "hall id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable sqlite home persistence")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	hallDir := filepath.Join(*dataDir, "halls", *hallID)
	_ = os.MkdirAll(hallDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	var homes *homestore.Store
	initialHomes := map[string][3]int{}
	if !*disableDB {
		homes, err = homestore.Open(filepath.Join(hallDir, "homes.db"))
		if err != nil {
			logger.Fatalf("open homestore: %v", err)
		}
		defer homes.Close()
		initialHomes, err = homes.All()
		if err != nil {
			logger.Fatalf("load homes: %v", err)
		}
		logger.Printf("loaded %d saved homes", len(initialHomes))
	}

	h := hall.New(hall.Config{
		ID:           *hallID,
		Tune:         tune,
		InitialHomes: initialHomes,
	})
	if homes != nil {
		h.SetHomeStore(homes)
	}

	audit := persistlog.NewAuditLogger(hallDir)
	defer audit.Close()
	h.SetAuditLogger(audit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := h.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("hall loop: %v", err)
		}
	}()

	wsServer := ws.NewServer(h, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s (hall=%s tick=%dHz slots=%d)", *addr, *hallID, tune.TickRateHz, tune.Trade.SlotsPerSide)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	h.Stop()
}
