package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/crmcore/internal/config"
	"github.com/nikhilbhutani/crmcore/internal/notify"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

// RedisOpt converts the Redis settings into asynq's connection option.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	return c.enqueue(ctx, TypeEmailSend, payload,
		asynq.Queue("critical"), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

// Send implements notify.Sender by handing the message to the worker.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	return c.EnqueueEmail(ctx, EmailPayload{To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	task, err := newTask(taskType, payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}
