// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable readers for component-level configuration.
package config

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotSet signals that a configuration value has no source, for example
// an unset environment variable. [Default] treats it as "use the fallback";
// every other error is propagated.
var ErrNotSet = errors.New("config: value not set")

// Reader reads a configuration value of type T.
type Reader[T any] interface {
	Read(context.Context) (T, error)
}

// ReaderFunc is an adapter to allow the use of ordinary functions as [Reader]s.
type ReaderFunc[T any] func(context.Context) (T, error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (T, error) {
	return f(ctx)
}

// Read reads the value from r.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	return r.Read(ctx)
}

// Env reads the named environment variable. It returns an error matching
// [ErrNotSet] if the variable is unset.
func Env(key string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (string, error) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %q", ErrNotSet, key)
		}
		return v, nil
	})
}

// ReaderOf wraps an [io.Reader] so byte-oriented combinators like
// [UnmarshalJSON] can consume it.
func ReaderOf(r io.Reader) Reader[io.Reader] {
	return ReaderFunc[io.Reader](func(ctx context.Context) (io.Reader, error) {
		return r, nil
	})
}

// Map transforms the value read from r with f.
func Map[T, U any](r Reader[T], f func(context.Context, T) (U, error)) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (U, error) {
		t, err := r.Read(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(ctx, t)
	})
}

// Default falls back to def when r has no value to offer. Errors other
// than [ErrNotSet] are propagated.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (T, error) {
		v, err := r.Read(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrNotSet) {
			return def, nil
		}
		var zero T
		return zero, err
	})
}

// Must reads from r and panics on any error. Intended for application
// wiring where a missing value is unrecoverable.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := r.Read(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// MustOr reads from r, falling back to def when r is nil or has no value,
// and panics on any other error.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	if r == nil {
		return def
	}
	return Must(ctx, Default(def, r))
}

// Int64FromString parses the value read from r with [strconv.ParseInt].
func Int64FromString(r Reader[string]) Reader[int64] {
	return Map(r, func(_ context.Context, s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// Int64FromBytes decodes 8 bytes read from r using the given byte order.
func Int64FromBytes(order binary.ByteOrder, r Reader[io.Reader]) Reader[int64] {
	return Map(r, func(_ context.Context, src io.Reader) (int64, error) {
		var b [8]byte
		_, err := io.ReadFull(src, b[:])
		if err != nil {
			return 0, err
		}
		return int64(order.Uint64(b[:])), nil
	})
}

// DurationFromString parses the value read from r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, func(_ context.Context, s string) (time.Duration, error) {
		return time.ParseDuration(s)
	})
}

// UnmarshalJSON decodes a T from the bytes read from r.
func UnmarshalJSON[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(_ context.Context, src io.Reader) (T, error) {
		var t T
		err := json.NewDecoder(src).Decode(&t)
		return t, err
	})
}

// UnmarshalYAML decodes a T from the bytes read from r.
func UnmarshalYAML[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(_ context.Context, src io.Reader) (T, error) {
		var t T
		err := yaml.NewDecoder(src).Decode(&t)
		return t, err
	})
}
