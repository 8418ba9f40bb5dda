package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tenantauth/backend/internal/audit"
	auditrepo "tenantauth/backend/internal/audit/repository"
	"tenantauth/backend/internal/auth"
	companyrepo "tenantauth/backend/internal/company/repository"
	"tenantauth/backend/internal/config"
	"tenantauth/backend/internal/db"
	"tenantauth/backend/internal/device"
	devicerepo "tenantauth/backend/internal/device/repository"
	attemptrepo "tenantauth/backend/internal/loginattempt/repository"
	"tenantauth/backend/internal/mail"
	"tenantauth/backend/internal/mfa"
	mfarepo "tenantauth/backend/internal/mfa/repository"
	"tenantauth/backend/internal/security"
	"tenantauth/backend/internal/server"
	"tenantauth/backend/internal/session"
	sessionrepo "tenantauth/backend/internal/session/repository"
	"tenantauth/backend/internal/telemetry/otel"
	userrepo "tenantauth/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "tenantauth-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()
	providers.SetGlobal()

	metrics, err := otel.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(pool), otel.NewAuditEmitter(providers.LoggerProvider))

	users := userrepo.NewPostgresRepository(pool)
	companies := companyrepo.NewPostgresRepository(pool)
	attempts := attemptrepo.NewPostgresRepository(pool)
	sessRepo := sessionrepo.NewPostgresRepository(pool)

	sessions := session.NewManager(sessRepo, auditLogger, session.Config{
		SlidingTTL:         cfg.SlidingTTL(),
		RememberTTL:        cfg.RememberTTL(),
		AbsoluteTTL:        cfg.AbsoluteTTL(),
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
	})
	go session.NewSweeper(sessRepo, cfg.SweepInterval()).Run(ctx)

	devices := device.NewTrustService(devicerepo.NewPostgresRepository(pool), auditLogger, cfg.DeviceTrustTTL())

	store, closeStore, err := challengeStore(ctx, cfg)
	if err != nil {
		log.Fatalf("mfa store: %v", err)
	}
	defer closeStore()

	hasher := security.NewHasher(cfg.BcryptCost)
	mfaSvc := mfa.NewService(users, mfarepo.NewPostgresRepository(pool), store, mailSender(cfg), hasher, sessions, devices, auditLogger, mfa.Config{})
	authSvc := auth.NewService(users, companies, attempts, sessions, devices, hasher, resetProvider(cfg), auditLogger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(authSvc, mfaSvc, sessions, devices, metrics, cfg.DeviceTrustTTL()).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// challengeStore picks Redis when configured so pending MFA challenges are
// shared across instances, and falls back to the in-process store.
func challengeStore(ctx context.Context, cfg *config.Config) (mfa.ChallengeStore, func(), error) {
	if cfg.RedisAddr == "" {
		return mfa.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return mfa.NewRedisStore(client, mfa.DefaultCodeTTL), func() { _ = client.Close() }, nil
}

// mailSender returns the transactional mail provider when an API key is set.
// Outside production a missing key degrades to logging codes locally.
func mailSender(cfg *config.Config) mail.Sender {
	if cfg.MailAPIKey != "" || cfg.Env == "production" {
		return mail.NewHTTPClient(cfg.MailAPIKey, cfg.MailBaseURL, cfg.MailSender)
	}
	return mail.LogSender{}
}

// resetProvider builds the password-reset token signer when key material is
// configured; without it reset endpoints reject every token.
func resetProvider(cfg *config.Config) *security.ResetTokenProvider {
	if cfg.ResetPrivateKey == "" || cfg.ResetPublicKey == "" {
		log.Println("password reset keys not configured; reset flow disabled")
		return nil
	}
	priv, err := security.ParsePrivateKey(cfg.ResetPrivateKey)
	if err != nil {
		log.Fatalf("reset private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.ResetPublicKey)
	if err != nil {
		log.Fatalf("reset public key: %v", err)
	}
	return security.NewResetTokenProvider(priv, pub, cfg.ResetTokenIssuer, cfg.ResetTokenAudience, cfg.ResetTTL())
}
