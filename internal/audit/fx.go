package audit

import (
	"github.com/smallbiznis/tka-invoice/internal/audit/repository"
	"github.com/smallbiznis/tka-invoice/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
