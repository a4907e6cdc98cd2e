//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sqs

import (
	"context"
	"testing"
	"time"

	"github.com/z5labs/chute/internal/ptr"
	"github.com/z5labs/chute/queue"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
)

func TestClient_Integration(t *testing.T) {
	endpoint, cleanup := setupElasticMQContainer(t)
	defer cleanup()

	api := awssqs.NewFromConfig(elasticMQConfig(), func(o *awssqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	ctx := context.Background()
	client := New(api)

	conn, err := client.MkConnection(ctx, "orders", "orders-failed")
	require.NoError(t, err)

	sc, ok := conn.(*Connection)
	require.True(t, ok)

	_, err = api.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    ptr.Ref(sc.queueURL),
		MessageBody: ptr.Ref("payload"),
	})
	require.NoError(t, err)

	// First delivery gets nacked and should come right back.
	msgs, err := client.Dequeue(ctx, conn, 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte("payload"), msgs[0].Body)

	err = client.Nack(ctx, conn, msgs[0])
	require.NoError(t, err)

	msgs, err = client.Dequeue(ctx, conn, 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	err = client.Ack(ctx, conn, msgs[0])
	require.NoError(t, err)

	msgs, err = client.Dequeue(ctx, conn, 10, time.Second)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestConsumer_Integration(t *testing.T) {
	endpoint, cleanup := setupElasticMQContainer(t)
	defer cleanup()

	api := awssqs.NewFromConfig(elasticMQConfig(), func(o *awssqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	ctx := context.Background()
	client := New(api)

	conn, err := client.MkConnection(ctx, "orders", "orders-failed")
	require.NoError(t, err)
	sc := conn.(*Connection)

	for range 5 {
		_, err := api.SendMessage(ctx, &awssqs.SendMessageInput{
			QueueUrl:    ptr.Ref(sc.queueURL),
			MessageBody: ptr.Ref("payload"),
		})
		require.NoError(t, err)
	}

	handled := make(chan struct{}, 5)
	handler := queue.HandlerFunc(func(ctx context.Context, msg queue.Message, done *queue.Buffer[queue.Message]) {
		done.Put(ctx, msg)
		handled <- struct{}{}
	})

	consumer, err := queue.Start(ctx, client, "orders", handler,
		queue.WithNumWorkers(2),
		queue.WithPollTimeout(time.Second),
	)
	require.NoError(t, err)
	defer consumer.Stop()

	for range 5 {
		select {
		case <-handled:
		case <-time.After(30 * time.Second):
			t.Fatal("message was not handled in time")
		}
	}

	require.NoError(t, consumer.Stop())
}
