package worker

import (
	"github.com/smallbiznis/tka-invoice/internal/worker/repository"
	"github.com/smallbiznis/tka-invoice/internal/worker/service"
	"go.uber.org/fx"
)

var Module = fx.Module("worker.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
