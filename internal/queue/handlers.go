package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to handlers. Each type may be
// registered once.
type HandlersRegistry struct {
	mux   *asynq.ServeMux
	types map[string]struct{}
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux:   asynq.NewServeMux(),
		types: map[string]struct{}{},
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) error {
	if _, dup := r.types[taskType]; dup {
		return fmt.Errorf("task type %q already registered", taskType)
	}
	r.types[taskType] = struct{}{}
	r.mux.Handle(taskType, handler)
	return nil
}

func (r *HandlersRegistry) Registered(taskType string) bool {
	_, ok := r.types[taskType]
	return ok
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
