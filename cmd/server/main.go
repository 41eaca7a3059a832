package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matchgiving/matchfund-backend/internal/adapter/counter"
	grpcadapter "github.com/matchgiving/matchfund-backend/internal/adapter/grpc"
	"github.com/matchgiving/matchfund-backend/internal/adapter/repository/postgres"
	"github.com/matchgiving/matchfund-backend/internal/adapter/rest"
	"github.com/matchgiving/matchfund-backend/internal/config"
	"github.com/matchgiving/matchfund-backend/internal/persistence"
	"github.com/matchgiving/matchfund-backend/internal/scheduler"
	"github.com/matchgiving/matchfund-backend/internal/usecase/allocation"
	"github.com/matchgiving/matchfund-backend/internal/usecase/expiry"
	"github.com/matchgiving/matchfund-backend/internal/usecase/intake"
	"github.com/matchgiving/matchfund-backend/internal/usecase/matching"
	"github.com/matchgiving/matchfund-backend/internal/usecase/redistribution"
	"github.com/matchgiving/matchfund-backend/internal/usecase/reporting"
	"github.com/matchgiving/matchfund-backend/internal/usecase/seeder"
)

const defaultAPIToken = "dev-token"

func main() {
	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("[INFO] starting matchfund engine in %s mode", cfg.App.Environment)

	// 2. Connect to the database
	db, err := postgres.NewDB(ctx, cfg.Database.GetDatabaseURL(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[ERROR] closing database: %v", err)
		}
	}()

	// 3. Initialize repositories and the balance store
	fundRepo := postgres.NewFundRepository(db)
	fundingRepo := postgres.NewFundingRepository(db)
	withdrawalRepo := postgres.NewWithdrawalRepository(db)
	donationRepo := postgres.NewDonationRepository(db)
	taskLockRepo := postgres.NewTaskLockRepository(db)
	balanceStore := counter.NewPostgresStore(db.DB)

	// 4. Initialize services
	adapter := matching.NewAdapter(balanceStore)
	allocationService := allocation.NewService(fundingRepo, withdrawalRepo, adapter)

	retrier := persistence.NewRetrier()
	retrier.MaxAttempts = cfg.Matching.MaxRetryAttempts
	intakeService := intake.NewService(donationRepo, allocationService, retrier)
	reportingService := reporting.NewService(fundingRepo, withdrawalRepo)

	redistributionService := redistribution.NewService(donationRepo, fundingRepo, withdrawalRepo, adapter, allocationService)
	redistributionService.BatchSize = cfg.Matching.BatchSize

	expiryService := expiry.NewService(donationRepo, allocationService, cfg.Matching.ReservationWindow)

	// Seed the baseline house funds
	systemSeeder := seeder.NewSystemSeeder(fundRepo)
	if err := systemSeeder.Seed(ctx); err != nil {
		log.Fatalf("Failed to seed system funds: %v", err)
	}
	log.Println("[INFO] system funds seeded")

	// 5. Start the background scheduler
	sched := scheduler.NewScheduler(ctx, expiryService, redistributionService, taskLockRepo, cfg.Schedule.LeaseTTL())
	if err := sched.RegisterAll(cfg.Schedule.ExpirySweep, cfg.Schedule.Maintenance); err != nil {
		log.Fatalf("Failed to register scheduled tasks: %v", err)
	}
	sched.Start()

	// 6. Start the gRPC server
	apiToken := os.Getenv("API_TOKEN")
	if apiToken == "" {
		apiToken = defaultAPIToken
	}

	grpcServer, healthServer := grpcadapter.NewServer(apiToken)

	lis, err := net.Listen("tcp", cfg.Server.GetGRPCAddr())
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Server.GetGRPCAddr(), err)
	}

	go func() {
		log.Printf("[INFO] gRPC server listening on %s", cfg.Server.GetGRPCAddr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// 7. Start the HTTP server (JSON API, health and metrics)
	apiHandler := rest.NewHandler(intakeService, reportingService, donationRepo)
	opsServer := newOpsServer(cfg, db, apiHandler)
	go func() {
		log.Printf("[INFO] ops server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start ops server: %v", err)
		}
	}()

	healthServer.SetServingStatus("", healthv1.HealthCheckResponse_SERVING)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("[INFO] received signal %v, shutting down", sig)

	healthServer.SetServingStatus("", healthv1.HealthCheckResponse_NOT_SERVING)
	sched.Stop()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Ops server forced to shutdown: %v", err)
	}

	log.Println("[INFO] server exited gracefully")
}

// newOpsServer builds the plaintext HTTP server carrying the JSON API, health
// checks and the Prometheus scrape endpoint
func newOpsServer(cfg *config.Config, db *postgres.DB, apiHandler *rest.Handler) *http.Server {
	mux := http.NewServeMux()
	apiHandler.Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		w.WriteHeader(http.StatusOK)
		response := fmt.Sprintf(`{"status":"ok","service":"matchfund-engine","hostname":"%s"}`, hostname)
		w.Write([]byte(response))
	})

	mux.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}
