package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	dateFlag := flag.String("date", "", "sweep a single day (YYYY-MM-DD) and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting absence sweeper", "sweep_hour", cfg.Attendance.SweepHour)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	loc := cfg.Attendance.Location()
	sweeper := attendance.NewSweeper(db, loc)

	// One-shot mode
	if *dateFlag != "" {
		day, err := time.ParseInLocation("2006-01-02", *dateFlag, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse -date: %v\n", err)
			os.Exit(1)
		}
		if err := runSweep(context.Background(), sweeper, producer, day); err != nil {
			slog.Error("sweep failed", "date", *dateFlag, "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("sweeper metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Sweep yesterday at startup, then once per day at the configured hour.
	go func() {
		if err := runSweep(ctx, sweeper, producer, yesterday(loc)); err != nil {
			slog.Error("startup sweep failed", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(untilNextSweep(time.Now().In(loc), cfg.Attendance.SweepHour)):
				if err := runSweep(ctx, sweeper, producer, yesterday(loc)); err != nil {
					slog.Error("scheduled sweep failed", "error", err)
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down sweeper...")
	cancel()
	time.Sleep(time.Second)
	slog.Info("sweeper stopped")
}

func runSweep(ctx context.Context, sweeper *attendance.Sweeper, producer *queue.Producer, day time.Time) error {
	created, err := sweeper.Sweep(ctx, day)
	if err != nil {
		return err
	}

	observability.AbsentRecords.Add(float64(created))
	slog.Info("sweep complete", "date", day.Format("2006-01-02"), "created", created)

	resp := dto.SweepResponse{Date: day.Format("2006-01-02"), Created: created}
	if err := producer.PublishSweep(ctx, resp); err != nil {
		slog.Warn("publish sweep event", "error", err)
	}
	return nil
}

func yesterday(loc *time.Location) time.Time {
	return time.Now().In(loc).AddDate(0, 0, -1)
}

// untilNextSweep returns the duration from now until the next occurrence
// of sweepHour o'clock local time.
func untilNextSweep(now time.Time, sweepHour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), sweepHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
