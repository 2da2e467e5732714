package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/encoder"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting presence API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	photos, err := storage.NewPhotoStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := photos.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebroadcast attendance events over WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeAttendance(ctx, "api-feed", func(ctx context.Context, msg jetstream.Msg) error {
		var data json.RawMessage
		if err := json.Unmarshal(msg.Data(), &data); err != nil {
			return err
		}
		evtType := "check_in"
		if msg.Subject() == queue.SubjectSweep {
			evtType = "sweep"
		}
		hub.BroadcastEvent(&dto.WSEvent{Type: evtType, Data: data})
		return nil
	})
	if err != nil {
		slog.Warn("start attendance feed consumer", "error", err)
	}

	// Encoder gateway
	if err := encoder.InitRuntime(getONNXLibPath()); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer encoder.DestroyRuntime()

	gateway, err := encoder.NewGateway(cfg.Recognition)
	if err != nil {
		slog.Error("load encoder models", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	// Core wiring
	registry := face.NewRegistry(gateway, db, db, cfg.Recognition.MinPhotos, cfg.Recognition.MaxPhotos)

	cutoffHour, cutoffMinute, err := cfg.Attendance.Cutoff()
	if err != nil {
		slog.Error("parse cutoff", "error", err)
		os.Exit(1)
	}
	rules := attendance.Rules{
		CutoffHour:      cutoffHour,
		CutoffMinute:    cutoffMinute,
		ConfidenceFloor: cfg.Recognition.CheckInThreshold,
		Location:        cfg.Attendance.Location(),
	}
	engine := attendance.NewEngine(db, rules)
	sweeper := attendance.NewSweeper(db, rules.Location)

	router := api.NewRouter(api.RouterConfig{
		APIKey:          cfg.Server.APIKey,
		DB:              db,
		Photos:          photos,
		Producer:        producer,
		Hub:             hub,
		Registry:        registry,
		Engine:          engine,
		Sweeper:         sweeper,
		VerifyThreshold: cfg.Recognition.VerifyThreshold,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
