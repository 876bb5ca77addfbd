package taskrecord

import (
	"github.com/portflow/portflow/internal/taskrecord/repository"
	"github.com/portflow/portflow/internal/taskrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taskrecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
