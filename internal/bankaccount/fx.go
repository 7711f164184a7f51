package bankaccount

import (
	"github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	"github.com/smallbiznis/tka-invoice/internal/bankaccount/service"
	"github.com/smallbiznis/tka-invoice/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("bankaccount.service",
	fx.Provide(repository.ProvideStore[domain.BankAccount]),
	fx.Provide(service.New),
)
