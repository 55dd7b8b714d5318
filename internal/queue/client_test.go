package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/crmcore/internal/config"
)

func TestNewTaskEncodesPayload(t *testing.T) {
	task, err := newTask(TypeEmailSend, EmailPayload{To: "ada@example.com", Subject: "s", HTML: "<p>b</p>"})
	require.NoError(t, err)
	require.Equal(t, TypeEmailSend, task.Type())

	var got EmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	require.Equal(t, "ada@example.com", got.To)
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	require.Equal(t, "redis:6379", opt.Addr)
	require.Equal(t, "pw", opt.Password)
	require.Equal(t, 2, opt.DB)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewHandlersRegistry()
	noop := asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil })

	require.NoError(t, reg.Register(TypeEmailSend, noop))
	require.True(t, reg.Registered(TypeEmailSend))
	require.Error(t, reg.Register(TypeEmailSend, noop))
	require.False(t, reg.Registered("other:type"))
	require.NotNil(t, reg.Mux())
}
