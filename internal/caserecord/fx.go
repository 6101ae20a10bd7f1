package caserecord

import (
	"github.com/smallbiznis/casebridge/internal/caserecord/repository"
	"github.com/smallbiznis/casebridge/internal/caserecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("caserecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
