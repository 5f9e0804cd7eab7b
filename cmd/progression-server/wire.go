//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the server components using Google Wire.
func BuildApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideTracing,
		provideHub,
		provideBoard,
		provideFunnel,
		provideActivity,
		provideRegistry,
		provideHooks,
		provideNotifier,
		provideStorage,
		provideProgression,
		provideHandler,
		provideServer,
		provideMetricsServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
