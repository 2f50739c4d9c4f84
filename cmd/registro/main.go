package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/zonekeeper/registro/internal/clock"
	"github.com/zonekeeper/registro/internal/config"
	"github.com/zonekeeper/registro/internal/cursor"
	"github.com/zonekeeper/registro/internal/expansion"
	"github.com/zonekeeper/registro/internal/logger"
	"github.com/zonekeeper/registro/internal/migration"
	"github.com/zonekeeper/registro/internal/premium"
	"github.com/zonekeeper/registro/internal/pricing"
	"github.com/zonekeeper/registro/internal/restore"
	"github.com/zonekeeper/registro/internal/server"
	"github.com/zonekeeper/registro/internal/tldconfig"
	"github.com/zonekeeper/registro/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		tldconfig.Module,

		// Functional domains
		premium.Module,
		pricing.Module,
		cursor.Module,
		restore.Module,
		expansion.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
