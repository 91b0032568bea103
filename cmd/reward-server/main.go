package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"match-reward-engine/internal/app/submission"
	"match-reward-engine/internal/config"
	"match-reward-engine/internal/integrity"
	"match-reward-engine/internal/janitor"
	"match-reward-engine/internal/logging"
	"match-reward-engine/internal/mint"
	"match-reward-engine/internal/ratelimit"
	"match-reward-engine/internal/reward"
	"match-reward-engine/internal/security"
	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/store"
	httptransport "match-reward-engine/internal/transport/http"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	srv := cfg.Server
	st, err := store.New(srv.PostgresDSN, store.WithOpTimeout(srv.StoreTimeout()))
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	deps := httptransport.Deps{Store: st}
	var rates security.RateLog = st
	if srv.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: srv.RedisAddr})
		defer rdb.Close()
		redisLog := ratelimit.NewRedisLog(rdb, cfg.Rules.Security.RateWindow)
		if err := redisLog.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Str("addr", srv.RedisAddr).Msg("redis unreachable, rate limit will fail open until it recovers")
		}
		rates = redisLog
		deps.RateLog = redisLog
	}

	var minter settlement.Minter
	if srv.MintURL != "" {
		client, err := mint.NewClient(mint.Config{
			BaseURL: srv.MintURL,
			APIKey:  srv.MintAPIKey,
			Timeout: srv.MintTimeout(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("mint client init failed")
		}
		minter = client
	} else {
		log.Warn().Msg("MINT_URL not set, accepted matches stay pending")
	}
	settler := settlement.NewSettler(minter, st, settlement.Config{})

	gate := security.NewGate(st, rates, cfg.Rules.Security)
	validator := integrity.NewValidator(cfg.Rules.Integrity)
	calc := reward.NewCalculator(cfg.Rules.Reward)
	deps.Submissions = submission.NewService(gate, validator, calc, st, settler, submission.Config{
		RequireSignature: srv.RequireSignature,
		MaxClockSkew:     srv.MaxClockSkew(),
	})
	if !srv.RequireSignature {
		log.Warn().Msg("REQUIRE_SIGNATURE disabled, submissions are not authenticated")
	}

	jobs, err := janitor.New(st, settler, janitor.Config{
		CleanupInterval:    srv.CleanupInterval(),
		SettlementInterval: srv.SettlementInterval(),
		NonceRetention:     cfg.Rules.Security.NonceWindow + srv.MaxClockSkew(),
		RateRetention:      cfg.Rules.Security.RateWindow,
		UsageRetention:     srv.UsageRetention(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("janitor init failed")
	}
	jobs.Start()

	r := httptransport.NewRouter(deps, srv)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              srv.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Str("addr", srv.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := jobs.Shutdown(); err != nil {
		log.Error().Err(err).Msg("janitor shutdown")
	}
}
