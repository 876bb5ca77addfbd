package docnumber

import (
	"github.com/portflow/portflow/internal/docnumber/service"
	"go.uber.org/fx"
)

var Module = fx.Module("docnumber.service",
	fx.Provide(service.New),
)
