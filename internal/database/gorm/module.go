package gorm

import (
	"go.uber.org/fx"

	"github.com/hartwell/standwatch/internal/database"
)

// Module exports the GORM connection resolver for dependency injection.
// The per-dialect providers register themselves through their own modules.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewResolver,
		fx.As(new(database.ConnectionResolver)),
	)),
)
