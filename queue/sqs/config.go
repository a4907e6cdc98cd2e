// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/z5labs/chute/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Config holds configuration readers for SQS infrastructure settings.
type Config struct {
	Region            config.Reader[string]
	Endpoint          config.Reader[string]
	MaxReceiveCount   config.Reader[int]
	VisibilityTimeout config.Reader[time.Duration]
}

// RegionFromEnv reads the AWS region from the AWS_REGION environment variable.
func RegionFromEnv() config.Reader[string] {
	return config.Env("AWS_REGION")
}

// EndpointFromEnv reads an SQS endpoint override from the SQS_ENDPOINT
// environment variable. Useful for pointing at local SQS-compatible
// services like ElasticMQ.
func EndpointFromEnv() config.Reader[string] {
	return config.Env("SQS_ENDPOINT")
}

// MaxReceiveCountFromEnv reads the redrive policy receive count from the
// SQS_MAX_RECEIVE_COUNT environment variable.
func MaxReceiveCountFromEnv() config.Reader[int] {
	return config.Map(
		config.Int64FromString(config.Env("SQS_MAX_RECEIVE_COUNT")),
		func(_ context.Context, n int64) (int, error) {
			return int(n), nil
		},
	)
}

// VisibilityTimeoutFromEnv reads the visibility timeout from the
// SQS_VISIBILITY_TIMEOUT environment variable. The value should be a
// duration string (e.g. "30s", "2m").
func VisibilityTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("SQS_VISIBILITY_TIMEOUT"))
}

// BuildClient constructs a [Client] from the given readers, loading AWS
// credentials from the environment the way the SDK normally does.
func BuildClient(ctx context.Context, cfg Config) (*Client, error) {
	region := config.MustOr(ctx, "", cfg.Region)
	endpoint := config.MustOr(ctx, "", cfg.Endpoint)
	maxReceiveCount := config.MustOr(ctx, 5, cfg.MaxReceiveCount)
	visibilityTimeout := config.MustOr(ctx, 0, cfg.VisibilityTimeout)

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: failed to load aws config: %w", err)
	}

	opts := []Option{
		WithMaxReceiveCount(maxReceiveCount),
	}
	if visibilityTimeout > 0 {
		opts = append(opts, WithVisibilityTimeout(visibilityTimeout))
	}

	api := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(api, opts...), nil
}
