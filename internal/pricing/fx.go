package pricing

import (
	"github.com/zonekeeper/registro/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing",
	fx.Provide(
		service.NewService,
	),
)
