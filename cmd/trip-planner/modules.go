// README: fx modules wiring the backend client, session store/service and HTTP server.
package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tripplanner/internal/backend"
	"tripplanner/internal/config"
	httptransport "tripplanner/internal/http"
	"tripplanner/internal/infra"
	"tripplanner/internal/logger"
	"tripplanner/internal/modules/session"
)

var backendModule = fx.Module("backend",
	fx.Provide(provideBackend),
)

var sessionModule = fx.Module("session",
	fx.Provide(provideStore, provideSessionService),
)

var httpModule = fx.Module("http",
	fx.Provide(provideRouter, provideServer),
	fx.Invoke(func(*httptransport.Server) {}),
)

func provideLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, cfg.Log.Development)
}

// syncLogger flushes buffered entries once every other stop hook has run.
func syncLogger(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.StopHook(func() {
		_ = log.Sync()
	}))
}

func provideBackend(cfg config.Config, log *zap.Logger) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, backend.Timeouts{
		Generate: cfg.Backend.GenerateTimeout,
		PDF:      cfg.Backend.PDFTimeout,
		Ask:      cfg.Backend.AskTimeout,
	}, nil, log)
}

func provideStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (session.Store, error) {
	if cfg.Session.Backend != config.SessionBackendRedis {
		log.Info("using in-memory session store", zap.Duration("ttl", cfg.Session.TTL))
		return session.NewMemoryStore(cfg.Session.TTL), nil
	}

	client, err := infra.NewRedis(context.Background(), cfg.Redis.Addr)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() error {
		return client.Close()
	}))
	log.Info("using redis session store", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Session.TTL))
	return session.NewRedisStore(client, cfg.Session.TTL), nil
}

func provideSessionService(lc fx.Lifecycle, cfg config.Config, store session.Store, b *backend.Client, log *zap.Logger) *session.Service {
	svc := session.NewService(store, b, log, session.Options{
		KeepItineraryOnPDFFailure: cfg.Session.KeepItineraryOnPDFFailure,
		AskTimeout:                cfg.Backend.AskTimeout,
	})
	lc.Append(fx.StopHook(svc.Shutdown))
	return svc
}

func provideRouter(cfg config.Config, svc *session.Service, log *zap.Logger) *gin.Engine {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	return httptransport.NewRouter(httptransport.RouterDeps{
		Sessions:     svc,
		Log:          log,
		CookieSecure: cfg.Session.CookieSecure,
	})
}

func provideServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) *httptransport.Server {
	// /ask is the only request that waits on the backend.
	writeTimeout := httptransport.WriteTimeoutFor(cfg.Backend.AskTimeout)
	srv := httptransport.NewServer(cfg.HTTP.Addr, engine, writeTimeout, log.Named("http"))
	lc.Append(fx.Hook{OnStart: srv.Start, OnStop: srv.Stop})
	return srv
}
