package debitnote

import (
	"github.com/portflow/portflow/internal/debitnote/repository"
	"github.com/portflow/portflow/internal/debitnote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("debitnote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
