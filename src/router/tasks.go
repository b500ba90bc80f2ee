package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

// Tasks runs detached work on per-guild serial lanes. Submitting never blocks
// and never reports the task's outcome to the caller: failures and panics are
// logged and dropped. Work submitted for the same guild runs in submission order.
type Tasks struct {
	ctx   context.Context
	log   *zap.Logger
	mu    sync.Mutex
	lanes map[string]*workerpool.WorkerPool
}

// NewTasks creates a runner whose tasks receive ctx.
func NewTasks(ctx context.Context, log *zap.Logger) *Tasks {
	return &Tasks{
		ctx:   ctx,
		log:   log,
		lanes: make(map[string]*workerpool.WorkerPool),
	}
}

// Go schedules fn on guildID's lane.
func (t *Tasks) Go(guildID, name string, fn func(ctx context.Context) error) {
	lane := t.lane(guildID)
	lane.Submit(func() {
		if err := t.run(name, fn); err != nil {
			t.log.Warn("detached task failed",
				zap.String("task", name),
				zap.String("guild", guildID),
				zap.Error(err))
		}
	})
}

func (t *Tasks) run(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(t.ctx)
}

func (t *Tasks) lane(guildID string) *workerpool.WorkerPool {
	t.mu.Lock()
	defer t.mu.Unlock()
	lane, ok := t.lanes[guildID]
	if !ok {
		lane = workerpool.New(1)
		t.lanes[guildID] = lane
	}
	return lane
}

// Wait blocks until every task queued so far has finished.
func (t *Tasks) Wait() {
	t.mu.Lock()
	lanes := make([]*workerpool.WorkerPool, 0, len(t.lanes))
	for _, lane := range t.lanes {
		lanes = append(lanes, lane)
	}
	t.mu.Unlock()

	for _, lane := range lanes {
		lane.SubmitWait(func() {})
	}
}

// Release stops a guild's lane once its queued work has drained.
func (t *Tasks) Release(guildID string) {
	t.mu.Lock()
	lane, ok := t.lanes[guildID]
	delete(t.lanes, guildID)
	t.mu.Unlock()
	if ok {
		go lane.StopWait()
	}
}

// Close drains and stops every lane.
func (t *Tasks) Close() {
	t.mu.Lock()
	lanes := t.lanes
	t.lanes = make(map[string]*workerpool.WorkerPool)
	t.mu.Unlock()

	for _, lane := range lanes {
		lane.StopWait()
	}
}

// Lanes reports how many guild lanes are open.
func (t *Tasks) Lanes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lanes)
}
