//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	kcfg "kandle/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *kcfg.Config) (*App, error) {
	wire.Build(
		provideAppBuilder,
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
		provideAppFromBuilder,
	)
	return nil, nil
}
