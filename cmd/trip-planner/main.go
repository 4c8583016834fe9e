// README: Entry point; loads config, wires services with fx, starts the HTTP server.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"tripplanner/internal/config"
)

func main() {
	app := fx.New(
		fx.Provide(config.Load, provideLogger),
		fx.Invoke(syncLogger),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		backendModule,
		sessionModule,
		httpModule,
	)
	app.Run()
}
