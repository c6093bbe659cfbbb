// Command server runs the token-economy backend: the mint controller, the
// staking rewards engine, and the merkle claim distributor behind one HTTP
// surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	distributorHandler "mintgate/internal/distributor/handler"
	distributorMetrics "mintgate/internal/distributor/metrics"
	distributorService "mintgate/internal/distributor/service"
	"mintgate/internal/distributor/store/claims"
	httptransport "mintgate/internal/http"
	"mintgate/internal/ledger"
	mintHandler "mintgate/internal/mint/handler"
	mintMetrics "mintgate/internal/mint/metrics"
	mintService "mintgate/internal/mint/service"
	"mintgate/internal/mint/store/cooldown"
	"mintgate/internal/platform/config"
	"mintgate/internal/platform/httpserver"
	"mintgate/internal/platform/logger"
	platformMetrics "mintgate/internal/platform/metrics"
	"mintgate/internal/platform/redis"
	stakingHandler "mintgate/internal/staking/handler"
	stakingMetrics "mintgate/internal/staking/metrics"
	stakingService "mintgate/internal/staking/service"
	"mintgate/internal/staking/store/position"
	id "mintgate/pkg/domain"
	"mintgate/pkg/platform/audit/publisher"
	kafkaPublisher "mintgate/pkg/platform/audit/publishers/kafka"
	auditMemory "mintgate/pkg/platform/audit/store/memory"
	"mintgate/pkg/platform/middleware/auth"
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	treasury, err := id.ParseIdentity(cfg.Treasury)
	if err != nil {
		return err
	}

	tokens := ledger.NewInMemory(treasury)
	tokens.Credit(treasury, cfg.PoolFunds)
	native := ledger.NewInMemoryNative()

	health := map[string]httptransport.HealthChecker{}

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return err
		}
		health["postgres"] = pingChecker{db}
		log.Info("using postgres-backed stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient
		log.Info("using redis cooldown store")
	}

	// Audit pipeline: Kafka when brokers are configured, otherwise an async
	// in-process store.
	var sink mintService.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafkaPublisher.New(cfg.KafkaBrokers, cfg.KafkaTopic, kafkaPublisher.WithLogger(log))
		if err != nil {
			return err
		}
		defer kp.Close()
		sink = kp
		log.Info("audit events shipped to kafka", "topic", cfg.KafkaTopic)
	} else {
		p := publisher.NewPublisher(auditMemory.NewInMemoryStore(),
			publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))
		defer p.Close()
		sink = p
	}

	var cooldowns mintService.CooldownStore = cooldown.New()
	if redisClient != nil {
		cooldowns = cooldown.NewRedis(redisClient.Client, cfg.Mint.Cooldown)
	}

	var positions stakingService.PositionStore = position.New()
	var claimStore distributorService.ClaimStore = claims.New()
	if db != nil {
		positions = position.NewPostgres(db)
		claimStore = claims.NewPostgres(db)
	}

	mintSvc, err := mintService.New(
		mintService.Policy{
			MaxSupply: cfg.Mint.MaxSupply,
			UnitPrice: cfg.Mint.UnitPrice,
			Cooldown:  cfg.Mint.Cooldown,
		},
		tokens, native, cooldowns,
		mintService.WithLogger(log),
		mintService.WithMetrics(mintMetrics.New()),
		mintService.WithAuditPublisher(sink),
	)
	if err != nil {
		return err
	}

	stakingSvc, err := stakingService.New(positions, tokens, treasury, cfg.Staking.RewardRate,
		stakingService.WithLogger(log),
		stakingService.WithMetrics(stakingMetrics.New()),
		stakingService.WithAuditPublisher(sink),
	)
	if err != nil {
		return err
	}

	distributorSvc, err := distributorService.New(claimStore, tokens, cfg.Claims.RewardAmount,
		distributorService.WithLogger(log),
		distributorService.WithMetrics(distributorMetrics.New()),
		distributorService.WithAuditPublisher(sink),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:       log,
		Metrics:      platformMetrics.New(),
		Validator:    auth.NewValidator(cfg.JWTSigningKey),
		AdminToken:   cfg.AdminToken,
		Mint:         mintHandler.New(mintSvc, log),
		Staking:      stakingHandler.New(stakingSvc, log),
		Distributor:  distributorHandler.New(distributorSvc, log),
		HealthChecks: health,
	})

	server := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

type pingChecker struct {
	db *sql.DB
}

func (c pingChecker) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
