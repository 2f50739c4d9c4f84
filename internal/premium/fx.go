package premium

import (
	"github.com/zonekeeper/registro/internal/clock"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	"github.com/zonekeeper/registro/internal/premium/service"
	"github.com/zonekeeper/registro/internal/tldconfig"
	"go.uber.org/fx"
)

var Module = fx.Module("premium.service",
	fx.Provide(
		fx.Annotate(service.NewService, fx.ResultTags(`name:"premium_db"`)),
		fx.Annotate(
			func(next premiumdomain.Service, tldCfg *tldconfig.Holder, clk clock.Clock) premiumdomain.Service {
				return service.NewCachedService(next, tldCfg, clk, 0)
			},
			fx.ParamTags(`name:"premium_db"`),
		),
	),
)
