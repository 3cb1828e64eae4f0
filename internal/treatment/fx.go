package treatment

import (
	"github.com/smallbiznis/dentaldesk/internal/treatment/repository"
	"github.com/smallbiznis/dentaldesk/internal/treatment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treatment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
