package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth/internal/captcha"
	"github.com/ovaphlow/pitchfork/service-auth/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-auth/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth/internal/otp"
	otprepo "github.com/ovaphlow/pitchfork/service-auth/internal/otp/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-auth/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

// stores bundles the three repositories of one storage backend.
type stores struct {
	users   user.Store
	otps    otp.Store
	refresh session.Store
	ping    func(ctx context.Context) error
	close   func()
}

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-auth", "driver", cfg.Driver, "production", cfg.Production)

	st, err := openStores(cfg)
	if err != nil {
		sugar.Fatalf("storage: %v", err)
	}
	defer st.close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outbound := &http.Client{Timeout: cfg.OutboundTimeout}

	var sender mail.Sender
	if cfg.Email.Enabled() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.User,
			Password: cfg.Email.Pass,
			FromName: cfg.Email.FromName,
			Timeout:  cfg.OutboundTimeout,
		})
	} else {
		sugar.Warn("EMAIL_USER/EMAIL_PASS not set; emails are written to the debug log")
		sender = mail.NewLogSender(sugar)
	}

	if cfg.RecaptchaSecret == "" {
		sugar.Warn("RECAPTCHA_SECRET not set; challenged logins and password resets will fail")
	}
	recaptcha := captcha.NewReCaptcha(cfg.RecaptchaSecret, cfg.RecaptchaVerifyURL, outbound)

	if cfg.GoogleClientID == "" {
		sugar.Warn("GOOGLE_CLIENT_ID not set; google login is disabled")
	}
	google, err := identity.NewGoogleVerifier(ctx, cfg.GoogleClientID, outbound)
	if err != nil {
		sugar.Fatalf("google verifier: %v", err)
	}

	users := user.NewUserService(st.users, user.BcryptHasher{Cost: cfg.BcryptCost}, sugar)
	otps := otp.NewManager(st.otps, sender, sugar, cfg.OTPTTL, cfg.Email.FromName)
	access := session.NewAccessIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	refresh := session.NewRefreshManager(st.refresh, cfg.RefreshTokenTTL, sugar)

	svc := auth.NewService(users, otps, access, refresh, recaptcha, google,
		user.NewRiskGate(cfg.RiskThreshold),
		auth.Options{AllowPrivilegedSignup: cfg.AllowPrivilegedSignup},
		sugar,
	)
	h := auth.NewHandler(svc, auth.CookieConfig{Secure: cfg.Production, MaxAge: cfg.RefreshTokenTTL}, sugar)

	var limiter *router.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = router.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, sugar)
	}

	go runJanitor(ctx, sugar, cfg.JanitorInterval, otps, refresh, limiter)

	// mount http server
	handler := router.RegisterRoutes(sugar, router.Deps{
		Auth:       h,
		Access:     access,
		CORSOrigin: cfg.CORSOrigin,
		Ping:       st.ping,
		Limiter:    limiter,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		sugar.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func openStores(cfg config.Config) (*stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := database.OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:   userrepo.NewPostgres(db),
			otps:    otprepo.NewPostgres(db),
			refresh: sessionrepo.NewPostgres(db),
			ping:    db.PingContext,
			close:   func() { db.Close() },
		}, nil

	case config.DriverBolt:
		db, err := database.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:   userrepo.NewBolt(db),
			otps:    otprepo.NewBolt(db),
			refresh: sessionrepo.NewBolt(db),
			close:   func() { db.Close() },
		}, nil

	default:
		client, db, err := database.OpenMongo(cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:   userrepo.NewMongo(db),
			otps:    otprepo.NewMongo(db),
			refresh: sessionrepo.NewMongo(db),
			ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil
	}
}

// runJanitor purges expired one-time codes and refresh tokens until ctx ends.
func runJanitor(ctx context.Context, logger *zap.SugaredLogger, every time.Duration, otps *otp.Manager, refresh *session.RefreshManager, limiter *router.RateLimiter) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := otps.DeleteExpired(ctx)
			if err != nil {
				logger.Warnw("purge expired otps", "err", err)
			}
			m, err := refresh.DeleteExpired(ctx)
			if err != nil {
				logger.Warnw("purge expired refresh tokens", "err", err)
			}
			var swept int
			if limiter != nil {
				swept = limiter.Sweep()
			}
			logger.Debugw("janitor run", "otps", n, "refresh_tokens", m, "rate_limit_clients", swept)
		}
	}
}
