package execution

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"project-hub/internal/config"
	"project-hub/internal/logger"
)

const (
	TaskTypeExecute = "code:execute"
	queueName       = "code-exec"
	resultRetention = time.Hour
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// Job states reported to clients.
const (
	StatePending   = "pending"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateRetry     = "retry"
)

// Status describes a queued job. Result is set once the job completed.
type Status struct {
	ID     string   `json:"jobId"`
	State  string   `json:"state"`
	Result *Outcome `json:"result"`
	Error  string   `json:"error,omitempty"`
}

// Queue accepts snippets for background execution.
type Queue interface {
	Enqueue(ctx context.Context, req Request) (string, error)
	Status(ctx context.Context, id string) (Status, error)
	IsAsync() bool
	Close() error
}

// NewQueue returns a Redis backed queue when Redis is enabled and
// reachable, otherwise an in-process queue that runs jobs on goroutines.
func NewQueue(cfg config.RedisConfig, runner *Runner) Queue {
	if cfg.Enabled {
		q, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[Exec] async queue on redis %s", cfg.Addr)
			return q
		}
		logger.Warn().Err(err).Msg("[Exec] redis unavailable, falling back to local queue")
	}
	logger.Infof("[Exec] local queue initialized")
	return NewLocalQueue(runner)
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// AsyncQueue stores jobs in Redis through asynq. Results are written by
// Worker and kept for an hour.
type AsyncQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewAsyncQueue(cfg config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	inspector := asynq.NewInspector(opt)
	if _, err := inspector.Queues(); err != nil {
		inspector.Close()
		return nil, err
	}
	return &AsyncQueue{client: asynq.NewClient(opt), inspector: inspector}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeExecute, payload),
		asynq.Queue(queueName),
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(1),
		asynq.Retention(resultRetention),
	)
	if err != nil {
		return "", err
	}
	logger.Info().Str("job_id", info.ID).Str("queue", info.Queue).Msg("[Exec] job enqueued")
	return info.ID, nil
}

func (q *AsyncQueue) Status(ctx context.Context, id string) (Status, error) {
	info, err := q.inspector.GetTaskInfo(queueName, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return Status{}, ErrJobNotFound
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{ID: info.ID, State: stateOf(info.State), Error: info.LastErr}
	if info.State == asynq.TaskStateCompleted && len(info.Result) > 0 {
		var out Outcome
		if err := json.Unmarshal(info.Result, &out); err == nil {
			st.Result = &out
		}
	}
	return st, nil
}

func stateOf(s asynq.TaskState) string {
	switch s {
	case asynq.TaskStateActive:
		return StateActive
	case asynq.TaskStateCompleted:
		return StateCompleted
	case asynq.TaskStateArchived:
		return StateFailed
	case asynq.TaskStateRetry:
		return StateRetry
	default:
		return StatePending
	}
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

// Worker consumes execution tasks from Redis.
type Worker struct {
	server *asynq.Server
	runner *Runner
}

func NewWorker(cfg config.RedisConfig, runner *Runner) *Worker {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("type", task.Type()).Msg("[Exec] task failed")
		}),
	})
	return &Worker{server: server, runner: runner}
}

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeExecute, w.handle)
	return w.server.Start(mux)
}

func (w *Worker) Stop() {
	w.server.Shutdown()
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task) error {
	var req Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return errors.Join(asynq.SkipRetry, err)
	}
	out, err := w.runner.Run(ctx, req)
	if err != nil {
		return err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = t.ResultWriter().Write(data)
	return err
}

// LocalQueue runs jobs in-process and keeps results in memory. Finished
// jobs are forgotten after resultRetention, like the Redis queue.
type LocalQueue struct {
	runner *Runner
	now    func() time.Time
	mu     sync.RWMutex
	jobs   map[string]*localJob
	wg     sync.WaitGroup
}

type localJob struct {
	status     Status
	finishedAt time.Time
}

func NewLocalQueue(runner *Runner) *LocalQueue {
	return &LocalQueue{runner: runner, now: time.Now, jobs: make(map[string]*localJob)}
}

func (q *LocalQueue) Enqueue(ctx context.Context, req Request) (string, error) {
	id := uuid.NewString()
	q.mu.Lock()
	q.pruneLocked()
	q.jobs[id] = &localJob{status: Status{ID: id, State: StatePending}}
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.set(id, func(job *localJob) { job.status.State = StateActive })
		out, err := q.runner.Run(context.WithoutCancel(ctx), req)
		q.set(id, func(job *localJob) {
			job.finishedAt = q.now()
			if err != nil {
				job.status.State = StateFailed
				job.status.Error = err.Error()
				return
			}
			job.status.State = StateCompleted
			job.status.Result = &out
		})
	}()
	return id, nil
}

func (q *LocalQueue) set(id string, fn func(*localJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[id]; ok {
		fn(job)
	}
}

func (q *LocalQueue) expired(job *localJob) bool {
	return !job.finishedAt.IsZero() && q.now().Sub(job.finishedAt) > resultRetention
}

func (q *LocalQueue) pruneLocked() {
	for id, job := range q.jobs {
		if q.expired(job) {
			delete(q.jobs, id)
		}
	}
}

func (q *LocalQueue) Status(ctx context.Context, id string) (Status, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok || q.expired(job) {
		return Status{}, ErrJobNotFound
	}
	return job.status, nil
}

func (q *LocalQueue) IsAsync() bool { return false }

// Close waits for running jobs.
func (q *LocalQueue) Close() error {
	q.wg.Wait()
	return nil
}

var (
	_ Queue = (*AsyncQueue)(nil)
	_ Queue = (*LocalQueue)(nil)
)
