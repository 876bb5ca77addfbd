package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/config"
	"github.com/portflow/portflow/internal/migration"
	"github.com/portflow/portflow/internal/observability"
	"github.com/portflow/portflow/internal/server"
	"github.com/portflow/portflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
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
