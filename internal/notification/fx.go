package notification

import (
	"github.com/smallbiznis/casebridge/internal/notification/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.router",
	email.Module,
	fx.Provide(New),
)
