package cursor

import (
	"github.com/zonekeeper/registro/internal/cursor/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cursor",
	fx.Provide(
		service.NewService,
	),
)
