package jobdescription

import (
	"github.com/smallbiznis/tka-invoice/internal/jobdescription/repository"
	"github.com/smallbiznis/tka-invoice/internal/jobdescription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("jobdescription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
