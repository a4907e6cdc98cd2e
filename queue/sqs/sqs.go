// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sqs implements the queue.QueueClient interface on Amazon SQS.
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/z5labs/chute/concurrent"
	"github.com/z5labs/chute/internal/ptr"
	"github.com/z5labs/chute/queue"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// API is the subset of the SQS client methods this package uses.
type API interface {
	GetQueueUrl(context.Context, *awssqs.GetQueueUrlInput, ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error)
	CreateQueue(context.Context, *awssqs.CreateQueueInput, ...func(*awssqs.Options)) (*awssqs.CreateQueueOutput, error)
	GetQueueAttributes(context.Context, *awssqs.GetQueueAttributesInput, ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
	ReceiveMessage(context.Context, *awssqs.ReceiveMessageInput, ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(context.Context, *awssqs.DeleteMessageInput, ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(context.Context, *awssqs.ChangeMessageVisibilityInput, ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error)
}

// Options are the configurable parameters of a [Client].
type Options struct {
	createMissing     bool
	maxReceiveCount   int
	visibilityTimeout time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// WithoutQueueCreation disables creating queues which do not already
// exist. MkConnection then fails with a fatal error for unknown queues.
func WithoutQueueCreation() Option {
	return func(o *Options) {
		o.createMissing = false
	}
}

// WithMaxReceiveCount sets the redrive policy's receive count before a
// message moves to the dead-letter queue. Default is 5.
func WithMaxReceiveCount(n int) Option {
	return func(o *Options) {
		o.maxReceiveCount = n
	}
}

// WithVisibilityTimeout sets the visibility timeout configured on queues
// created by MkConnection. Zero leaves the SQS default in place.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.visibilityTimeout = d
	}
}

// Client implements [queue.QueueClient] against Amazon SQS.
//
// Queue URLs are resolved once per queue name and cached for the life of
// the client. The client is safe for concurrent use.
type Client struct {
	api  API
	o    Options
	urls *concurrent.Cache[string, string]
}

// New returns a Client using the given SQS API.
func New(api API, opts ...Option) *Client {
	o := Options{
		createMissing:   true,
		maxReceiveCount: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		api:  api,
		o:    o,
		urls: concurrent.NewCache[string, string](),
	}
}

// NewFromConfig returns a Client backed by a real SQS client built from
// the given AWS config.
func NewFromConfig(cfg aws.Config, opts ...Option) *Client {
	return New(awssqs.NewFromConfig(cfg), opts...)
}

// Connection binds a primary queue and its dead-letter queue to their
// resolved queue URLs.
type Connection struct {
	queueName   string
	queueURL    string
	dlQueueName string
	dlQueueURL  string
}

// QueueName implements the [queue.Connection] interface.
func (c *Connection) QueueName() string {
	return c.queueName
}

// DeadLetterQueueName implements the [queue.Connection] interface.
func (c *Connection) DeadLetterQueueName() string {
	return c.dlQueueName
}

// MkConnection implements the [queue.QueueClient] interface.
//
// Both queues are resolved and created if missing. A primary queue created
// here gets a redrive policy targeting the dead-letter queue (and the
// configured visibility timeout); a primary queue which already exists is
// bound as is and its attributes are not changed.
func (c *Client) MkConnection(ctx context.Context, queueName, deadLetterQueueName string) (queue.Connection, error) {
	dlURL, err := c.ensureQueue(ctx, deadLetterQueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("sqs: failed to resolve dead-letter queue %q: %w", deadLetterQueueName, err)
	}

	redrive, err := c.redrivePolicy(ctx, dlURL)
	if err != nil {
		return nil, err
	}

	attrs := map[string]string{
		string(types.QueueAttributeNameRedrivePolicy): redrive,
	}
	if c.o.visibilityTimeout > 0 {
		attrs[string(types.QueueAttributeNameVisibilityTimeout)] = strconv.Itoa(int(c.o.visibilityTimeout / time.Second))
	}

	url, err := c.ensureQueue(ctx, queueName, attrs)
	if err != nil {
		return nil, fmt.Errorf("sqs: failed to resolve queue %q: %w", queueName, err)
	}

	return &Connection{
		queueName:   queueName,
		queueURL:    url,
		dlQueueName: deadLetterQueueName,
		dlQueueURL:  dlURL,
	}, nil
}

func (c *Client) ensureQueue(ctx context.Context, name string, attrs map[string]string) (string, error) {
	return c.urls.GetOr(name, func() (string, error) {
		out, err := c.api.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{
			QueueName: ptr.Ref(name),
		})
		if err == nil {
			return aws.ToString(out.QueueUrl), nil
		}

		var missing *types.QueueDoesNotExist
		if !errors.As(err, &missing) || !c.o.createMissing {
			return "", classify(err)
		}

		created, err := c.api.CreateQueue(ctx, &awssqs.CreateQueueInput{
			QueueName:  ptr.Ref(name),
			Attributes: attrs,
		})
		if err != nil {
			return "", classify(err)
		}
		return aws.ToString(created.QueueUrl), nil
	})
}

func (c *Client) redrivePolicy(ctx context.Context, dlQueueURL string) (string, error) {
	out, err := c.api.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       ptr.Ref(dlQueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", fmt.Errorf("sqs: failed to read dead-letter queue arn: %w", classify(err))
	}

	policy := struct {
		DeadLetterTargetArn string `json:"deadLetterTargetArn"`
		MaxReceiveCount     int    `json:"maxReceiveCount"`
	}{
		DeadLetterTargetArn: out.Attributes[string(types.QueueAttributeNameQueueArn)],
		MaxReceiveCount:     c.o.maxReceiveCount,
	}

	b, err := json.Marshal(policy)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Dequeue implements the [queue.QueueClient] interface.
func (c *Client) Dequeue(ctx context.Context, conn queue.Connection, maxCount int, pollTimeout time.Duration) ([]queue.Message, error) {
	sc, err := c.connection(conn)
	if err != nil {
		return nil, err
	}

	out, err := c.api.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            ptr.Ref(sc.queueURL),
		MaxNumberOfMessages: clampBatchSize(maxCount),
		WaitTimeSeconds:     clampWaitTime(pollTimeout),
		MessageAttributeNames: []string{
			"All",
		},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	msgs := make([]queue.Message, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = mapMessage(m)
	}
	return msgs, nil
}

// Ack implements the [queue.QueueClient] interface by deleting the message.
func (c *Client) Ack(ctx context.Context, conn queue.Connection, msg queue.Message) error {
	sc, err := c.connection(conn)
	if err != nil {
		return err
	}

	_, err = c.api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      ptr.Ref(sc.queueURL),
		ReceiptHandle: ptr.Ref(msg.ReceiptHandle),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Nack implements the [queue.QueueClient] interface by zeroing the
// message's visibility timeout so it redelivers immediately.
func (c *Client) Nack(ctx context.Context, conn queue.Connection, msg queue.Message) error {
	sc, err := c.connection(conn)
	if err != nil {
		return err
	}

	_, err = c.api.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          ptr.Ref(sc.queueURL),
		ReceiptHandle:     ptr.Ref(msg.ReceiptHandle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) connection(conn queue.Connection) (*Connection, error) {
	sc, ok := conn.(*Connection)
	if !ok {
		return nil, queue.FatalError{
			Err: fmt.Errorf("sqs: connection was not created by this client: %T", conn),
		}
	}
	return sc, nil
}

func mapMessage(m types.Message) queue.Message {
	msg := queue.Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          []byte(aws.ToString(m.Body)),
	}

	if len(m.MessageAttributes) > 0 {
		msg.Attributes = make(map[string]string, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			msg.Attributes[k] = aws.ToString(v.StringValue)
		}
	}

	rc := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if rc != "" {
		n, err := strconv.Atoi(rc)
		if err == nil {
			msg.ReceiveCount = n
		}
	}

	return msg
}

func clampBatchSize(n int) int32 {
	// ReceiveMessage accepts at most 10 messages per call.
	return int32(max(1, min(n, 10)))
}

func clampWaitTime(d time.Duration) int32 {
	// Long polls are capped at 20s by SQS.
	return int32(max(0, min(int(d/time.Second), 20)))
}

// fatalErrorCodes are API error codes which retrying cannot fix.
var fatalErrorCodes = map[string]struct{}{
	"AccessDenied":          {},
	"AccessDeniedException": {},
	"InvalidAddress":        {},
	"InvalidClientTokenId":  {},
	"InvalidSecurity":       {},
}

// classify wraps unrecoverable API errors in [queue.FatalError] so the
// engine stops polling instead of retrying forever.
func classify(err error) error {
	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return queue.FatalError{Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, fatal := fatalErrorCodes[apiErr.ErrorCode()]
		if fatal {
			return queue.FatalError{Err: err}
		}
	}

	return err
}
