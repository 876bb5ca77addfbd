package audit

import (
	"github.com/portflow/portflow/internal/audit/repository"
	"github.com/portflow/portflow/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
