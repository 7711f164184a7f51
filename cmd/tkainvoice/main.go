package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tka-invoice/internal/audit"
	"github.com/smallbiznis/tka-invoice/internal/authorization"
	"github.com/smallbiznis/tka-invoice/internal/bankaccount"
	"github.com/smallbiznis/tka-invoice/internal/clock"
	"github.com/smallbiznis/tka-invoice/internal/company"
	"github.com/smallbiznis/tka-invoice/internal/config"
	"github.com/smallbiznis/tka-invoice/internal/invoice"
	"github.com/smallbiznis/tka-invoice/internal/jobdescription"
	"github.com/smallbiznis/tka-invoice/internal/migration"
	"github.com/smallbiznis/tka-invoice/internal/observability"
	"github.com/smallbiznis/tka-invoice/internal/providers"
	"github.com/smallbiznis/tka-invoice/internal/server"
	"github.com/smallbiznis/tka-invoice/internal/worker"
	"github.com/smallbiznis/tka-invoice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		audit.Module,
		authorization.Module,

		// Domains
		company.Module,
		jobdescription.Module,
		worker.Module,
		bankaccount.Module,
		providers.Module,
		invoice.Module,

		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
