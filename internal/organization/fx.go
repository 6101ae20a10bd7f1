package organization

import (
	"github.com/smallbiznis/casebridge/internal/organization/repository"
	"github.com/smallbiznis/casebridge/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organisation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
