package expansion

import (
	"context"

	"github.com/zonekeeper/registro/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("expansion",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(runLoop),
)

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	out.TxIsolation = cfg.ExpansionTxIsolation()
	return out
}

func runLoop(lc fx.Lifecycle, cfg config.Config, engine *Engine) {
	if !cfg.ExpansionEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go engine.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
