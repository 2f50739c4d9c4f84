package restore

import (
	"github.com/zonekeeper/registro/internal/restore/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restore",
	fx.Provide(
		service.NewService,
	),
)
