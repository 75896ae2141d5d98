package mysql

import (
	"go.uber.org/fx"

	"github.com/hartwell/standwatch/internal/database"
)

// Module exports the MySQL Provider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.ResultTags(`group:"`+database.ProviderGroup+`"`),
		),
	),
)
