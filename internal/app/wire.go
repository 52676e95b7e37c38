package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pawtap/server/internal/adapter"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/guard"
	"github.com/pawtap/server/internal/handler"
	"github.com/pawtap/server/internal/infra"
	"github.com/pawtap/server/internal/repository"
	"github.com/pawtap/server/internal/service"
)

// Deps holds the process-level resources the application is assembled from.
type Deps struct {
	Config *infra.Config
	Pool   repository.Pool
	Cache  *cache.Cache
	Rules  game.Rules
	Checks map[string]handler.HealthCheck
	Logger *slog.Logger
}

// App is the assembled API process. The background loops are started by Run.
type App struct {
	Router   chi.Router
	Hub      *infra.WSHub
	Sessions *service.SessionManager
	Batcher  *adapter.TapBatcher
	Throttle *guard.TapThrottle
	Limiters []*guard.RateLimiter
	Auth     *service.AuthService
	Game     *service.GameService
}

// New wires repositories, adapters, guards, services and handlers.
// ctx bounds the lifetime of per-session timers.
func New(ctx context.Context, deps Deps) *App {
	cfg := deps.Config
	logger := deps.Logger
	pool := deps.Pool

	// Repositories
	userRepo := repository.NewUserRepository()
	charRepo := repository.NewCharacterRepository()
	notifRepo := repository.NewNotificationRepository()
	itemRepo := repository.NewItemRepository()
	referralRepo := repository.NewReferralRepository()
	tournamentRepo := repository.NewTournamentRepository()
	bonusRepo := repository.NewDailyBonusRepository()
	phraseRepo := repository.NewPhraseRepository()
	rankingRepo := repository.NewRankingRepository()
	actionRepo := repository.NewActionRepository()
	outboxRepo := repository.NewOutboxRepository()
	adminRepo := repository.NewPgAdminUserRepository()

	// Remote sync adapters
	base := adapter.NewBase(pool, deps.Cache, logger)
	chars := adapter.NewCharacterAdapter(base, charRepo, outboxRepo, deps.Rules)
	users := adapter.NewUserAdapter(base, userRepo, rankingRepo, actionRepo, tournamentRepo, outboxRepo)
	notifications := adapter.NewNotificationAdapter(base, notifRepo)
	store := adapter.NewStoreAdapter(base, itemRepo, outboxRepo)
	referrals := adapter.NewReferralAdapter(base, referralRepo, userRepo, outboxRepo)
	tournaments := adapter.NewTournamentAdapter(base, tournamentRepo, outboxRepo)
	bonuses := adapter.NewDailyBonusAdapter(base, bonusRepo, outboxRepo)
	phrases := adapter.NewPhraseAdapter(base, phraseRepo)
	batcher := adapter.NewTapBatcher(users, guard.NewCircuitBreaker("users.lifetime_taps", 5, 30*time.Second), logger, cfg.TapFlushInterval)

	// Guards
	throttle := guard.NewTapThrottle(cfg.TapRatePerSecond, cfg.TapBurst, 10*time.Minute)
	careLimiter := guard.NewRateLimiter(1, cfg.CareCooldown)
	loginLimiter := guard.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	idempotency := guard.NewIdempotencyGuard(24 * time.Hour)

	// Realtime
	hub := infra.NewWSHub(cfg.CORSAllowedOrigins, logger)

	// Services
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTPlayerExpiry, cfg.JWTAdminExpiry)
	validator := auth.NewInitDataValidator(cfg.TelegramBotToken, cfg.InitDataMaxAge)
	sessions := service.NewSessionManager(ctx, service.SessionConfig{
		Rules:        deps.Rules,
		IdleTimeout:  cfg.SessionIdleTimeout,
		SyncInterval: cfg.SnapshotInterval,
	}, chars, users, batcher, hub, logger)
	gameSvc := service.NewGameService(service.GameDeps{
		Sessions:      sessions,
		Items:         store,
		Bonuses:       bonuses,
		Referrals:     referrals,
		Tournaments:   tournaments,
		Users:         users,
		Phrases:       phrases,
		Notifications: notifications,
		TapThrottle:   throttle,
		CareLimiter:   careLimiter,
		Idempotency:   idempotency,
	}, logger)
	authSvc := service.NewAuthService(pool, users, adminRepo, validator, jwtMgr, guard.NewLockout(), logger)
	adminSvc := service.NewAdminService(store, notifications, tournaments, logger)

	// Handlers
	gameHandler := handler.NewGameHandler(gameSvc)
	authHandler := handler.NewAuthHandler(authSvc, gameSvc, loginLimiter, logger)
	adminHandler := handler.NewAdminHandler(adminSvc)
	wsHandler := handler.NewWSHandler(hub, gameSvc, logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Checks))

	// Telegram Mini App login (no auth)
	r.Post("/auth/telegram", authHandler.TelegramLogin)

	// Player-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticatePlayer(jwtMgr))

		r.Get("/ws", wsHandler.Serve)

		r.Route("/game", func(r chi.Router) {
			r.Get("/state", gameHandler.State)
			r.Post("/tap", gameHandler.Tap)
			r.Post("/feed", gameHandler.Feed)
			r.Post("/play", gameHandler.Play)
			r.Post("/avatar", gameHandler.SetAvatar)
			r.Post("/thought", gameHandler.SetThought)
		})

		r.Route("/store", func(r chi.Router) {
			r.Get("/items", gameHandler.StoreItems)
			r.Post("/items/{id}/purchase", gameHandler.Purchase)
		})

		r.Get("/daily-bonus", gameHandler.DailyBonus)
		r.Post("/daily-bonus", gameHandler.ClaimDailyBonus)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", gameHandler.Notifications)
			r.Post("/{id}/read", gameHandler.MarkNotificationRead)
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Get("/", gameHandler.Referrals)
			r.Post("/code", gameHandler.GenerateReferralCode)
			r.Post("/use", gameHandler.UseReferral)
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", gameHandler.Tournaments)
			r.Post("/{id}/join", gameHandler.JoinTournament)
			r.Get("/{id}/leaderboard", gameHandler.TournamentLeaderboard)
		})

		r.Get("/leaderboard", gameHandler.Leaderboard)
		r.Get("/leaderboard/me", gameHandler.Rank)
		r.Get("/phrases", gameHandler.Phrases)
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/login", authHandler.AdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(jwtMgr))
			r.Use(auth.RequireRole(auth.WriteRoles()...))

			r.Post("/items", adminHandler.SaveItem)
			r.Post("/notifications/broadcast", adminHandler.Broadcast)
			r.Post("/tournaments", adminHandler.CreateTournament)
		})
	})

	return &App{
		Router:   r,
		Hub:      hub,
		Sessions: sessions,
		Batcher:  batcher,
		Throttle: throttle,
		Limiters: []*guard.RateLimiter{careLimiter, loginLimiter},
		Auth:     authSvc,
		Game:     gameSvc,
	}
}

// Run starts the background loops: tap flushing, snapshot sync with idle eviction,
// and throttle sweeping. It returns once ctx is cancelled and the final session
// snapshots and tap flush are done.
func (a *App) Run(ctx context.Context, logger *slog.Logger) {
	a.Batcher.Start(ctx)

	sessionsDone := make(chan struct{})
	go func() {
		a.Sessions.Run(ctx)
		close(sessionsDone)
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-sessionsDone
			<-a.Batcher.Done()
			logger.Info("background loops stopped")
			return
		case <-ticker.C:
			n := a.Throttle.Sweep()
			for _, l := range a.Limiters {
				n += l.Sweep()
			}
			if n > 0 {
				logger.Debug("idle guard keys swept", "count", n)
			}
		}
	}
}
