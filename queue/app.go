// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/z5labs/chute"

	"github.com/z5labs/bedrock"
	"github.com/z5labs/bedrock/app"
	"github.com/z5labs/bedrock/appbuilder"
	bedrockcfg "github.com/z5labs/bedrock/config"
	"github.com/z5labs/bedrock/lifecycle"
)

// DefaultConfig returns the default config source which corresponds to the [Config] type.
func DefaultConfig() bedrockcfg.Source {
	return chute.DefaultConfig()
}

// Config is the default config which can be easily embedded into a
// more custom app specific config.
type Config struct {
	chute.Config `config:",squash"`
}

// Configer is leveraged to constrain the custom config type into
// supporting specific initialization behaviour required by [Run].
type Configer interface {
	appbuilder.OTelInitializer
}

// Builder initializes a [bedrock.AppBuilder] for your [Runtime].
func Builder[T Configer](f func(context.Context, T) (*Runtime, error)) bedrock.AppBuilder[T] {
	return appbuilder.LifecycleContext(
		appbuilder.OTel(
			appbuilder.Recover(
				bedrock.AppBuilderFunc[T](func(ctx context.Context, cfg T) (bedrock.App, error) {
					rt, err := f(ctx, cfg)
					if err != nil {
						return nil, err
					}

					bapp := app.InterruptOn(
						app.Recover(rt),
						os.Kill,
						os.Interrupt,
						syscall.SIGTERM,
					)
					return bapp, nil
				}),
			),
		),
		&lifecycle.Context{},
	)
}

// RunOptions are used for configuring the running of a [Runtime].
type RunOptions struct {
	logger *slog.Logger
}

// RunOption sets a value on [RunOptions].
type RunOption interface {
	ApplyRunOption(*RunOptions)
}

type runOptionFunc func(*RunOptions)

func (f runOptionFunc) ApplyRunOption(ro *RunOptions) {
	f(ro)
}

// LogHandler overrides the default [slog.Handler] used for logging
// any error encountered while building or running the [Runtime].
func LogHandler(h slog.Handler) RunOption {
	return runOptionFunc(func(ro *RunOptions) {
		ro.logger = slog.New(h)
	})
}

// Run begins by reading, parsing and unmarshaling your custom config into
// the type T. Then it calls the provided function to initialize your
// [Runtime]. The runtime runs until a shutdown signal arrives, at which
// point the pipeline is drained before the process exits. Various
// middlewares are applied for your convenience, including automatic panic
// recovery and OTel SDK initialization.
func Run[T Configer](r io.Reader, f func(context.Context, T) (*Runtime, error), opts ...RunOption) {
	ro := &RunOptions{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})),
	}
	for _, opt := range opts {
		opt.ApplyRunOption(ro)
	}

	runner := chute.NewRunner(
		appbuilder.FromConfig(Builder(f)),
		chute.OnError(chute.ErrorHandlerFunc(func(err error) {
			ro.logger.Error("unexpected error while running queue consumer", slog.Any("error", err))
		})),
	)
	runner.Run(
		context.Background(),
		bedrockcfg.MultiSource(
			DefaultConfig(),
			chute.ConfigSource(r),
		),
	)
}
