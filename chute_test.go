// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package chute

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/bedrock"
)

type appFunc func(context.Context) error

func (f appFunc) Run(ctx context.Context) error {
	return f(ctx)
}

func TestLogger(t *testing.T) {
	t.Run("will return a usable logger", func(t *testing.T) {
		log := Logger("github.com/z5labs/chute")
		require.NotNil(t, log)

		log.Info("hello")
	})
}

func TestRunner_Run(t *testing.T) {
	t.Run("will report the error", func(t *testing.T) {
		t.Run("if the app fails to build", func(t *testing.T) {
			buildErr := errors.New("failed to build app")
			builder := bedrock.AppBuilderFunc[int](func(ctx context.Context, cfg int) (bedrock.App, error) {
				return nil, buildErr
			})

			var caught error
			runner := NewRunner(builder, OnError(ErrorHandlerFunc(func(err error) {
				caught = err
			})))
			runner.Run(context.Background(), 0)

			require.ErrorIs(t, caught, buildErr)
		})

		t.Run("if the app fails while running", func(t *testing.T) {
			runErr := errors.New("failed to run app")
			builder := bedrock.AppBuilderFunc[int](func(ctx context.Context, cfg int) (bedrock.App, error) {
				return appFunc(func(ctx context.Context) error {
					return runErr
				}), nil
			})

			var caught error
			runner := NewRunner(builder, OnError(ErrorHandlerFunc(func(err error) {
				caught = err
			})))
			runner.Run(context.Background(), 0)

			require.ErrorIs(t, caught, runErr)
		})
	})

	t.Run("will not report an error", func(t *testing.T) {
		t.Run("if the app runs successfully", func(t *testing.T) {
			builder := bedrock.AppBuilderFunc[int](func(ctx context.Context, cfg int) (bedrock.App, error) {
				return appFunc(func(ctx context.Context) error {
					return nil
				}), nil
			})

			var caught error
			runner := NewRunner(builder, OnError(ErrorHandlerFunc(func(err error) {
				caught = err
			})))
			runner.Run(context.Background(), 0)

			require.NoError(t, caught)
		})
	})
}
