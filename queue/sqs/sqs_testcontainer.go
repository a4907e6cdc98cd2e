//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sqs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupElasticMQContainer starts an ElasticMQ container, an SQS-compatible
// in-memory queue service, and returns its endpoint and a cleanup function.
func setupElasticMQContainer(t *testing.T) (endpoint string, cleanup func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "docker.io/softwaremill/elasticmq-native:latest",
		ExposedPorts: []string{"9324/tcp"},
		WaitingFor:   wait.ForListeningPort("9324/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start ElasticMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9324/tcp")
	require.NoError(t, err)

	cleanup = func() {
		ctx := context.Background()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate ElasticMQ container: %v", err)
		}
	}

	return fmt.Sprintf("http://%s:%s", host, port.Port()), cleanup
}

// elasticMQConfig returns an AWS config pointed at a local ElasticMQ
// endpoint. ElasticMQ accepts any credentials.
func elasticMQConfig() aws.Config {
	return aws.Config{
		Region:      "elasticmq",
		Credentials: credentials.NewStaticCredentialsProvider("x", "x", ""),
	}
}
