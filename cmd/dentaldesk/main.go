package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/smallbiznis/dentaldesk/internal/migration"
	"github.com/smallbiznis/dentaldesk/internal/observability"
	"github.com/smallbiznis/dentaldesk/internal/scheduler"
	"github.com/smallbiznis/dentaldesk/internal/seed"
	"github.com/smallbiznis/dentaldesk/internal/server"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema and bootstrap data run before the HTTP server is wired.
		seed.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
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
