package tldconfig

import "go.uber.org/fx"

var Module = fx.Module("tldconfig",
	fx.Provide(NewHolder),
)
