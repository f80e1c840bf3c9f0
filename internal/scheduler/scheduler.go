package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Job — тело единицы исполнения. ctx отменяется при Cancel(id) и Stop().
type Job func(ctx context.Context) Outcome

// Outcome — результат Job.
//
// Rearm=true заменяет завершившуюся единицу новой (KindRetry) с задержкой After,
// id при этом не покидает реестр.
type Outcome struct {
	Rearm bool
	After time.Duration
}

// Finish — Outcome без повторного запуска.
func Finish() Outcome { return Outcome{} }

// RearmAfter — Outcome с повторным запуском через d.
func RearmAfter(d time.Duration) Outcome { return Outcome{Rearm: true, After: d} }

// Scheduler — реестр единиц исполнения, не более одной на id.
type Scheduler struct {
	clock  clockwork.Clock
	logger *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	units   map[uuid.UUID]*Handle
	stopped bool
	wg      sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	Clock  clockwork.Clock // default: clockwork.NewRealClock()
	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:      clock,
		logger:     logger.With("component", "scheduler"),
		baseCtx:    ctx,
		baseCancel: cancel,
		units:      make(map[uuid.UUID]*Handle),
	}
}

// ArmImmediate запускает job без задержки.
func (s *Scheduler) ArmImmediate(id uuid.UUID, job Job) (*Handle, error) {
	return s.arm(id, KindImmediate, 0, job)
}

// ArmAt запускает job в момент at. Если at уже наступил, запуск немедленный.
func (s *Scheduler) ArmAt(id uuid.UUID, at time.Time, job Job) (*Handle, error) {
	delay := at.Sub(s.clock.Now())
	if delay <= 0 {
		return s.arm(id, KindImmediate, 0, job)
	}
	return s.arm(id, KindScheduled, delay, job)
}

// ArmAfter запускает job через delay (backoff перед повтором).
func (s *Scheduler) ArmAfter(id uuid.UUID, delay time.Duration, job Job) (*Handle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.arm(id, KindRetry, delay, job)
}

func (s *Scheduler) arm(id uuid.UUID, kind Kind, delay time.Duration, job Job) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	if existing, ok := s.units[id]; ok {
		return existing, fmt.Errorf("%w: %s (%s)", ErrAlreadyArmed, id, existing.kind)
	}

	h := newHandle(s.baseCtx, id, kind, s.clock.Now().Add(delay), 0)
	s.units[id] = h
	s.launch(h, delay, job)

	s.logger.Debug("task armed",
		"workflow_id", id,
		"kind", kind,
		"delay", delay,
	)
	return h, nil
}

// launch вызывается под s.mu.
func (s *Scheduler) launch(h *Handle, delay time.Duration, job Job) {
	s.wg.Add(1)
	go s.run(h, delay, job)
}

func (s *Scheduler) run(h *Handle, delay time.Duration, job Job) {
	defer s.wg.Done()

	if delay > 0 {
		timer := s.clock.NewTimer(delay)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			s.finish(h, Finish(), job)
			return
		case <-timer.Chan():
		}
	}

	if h.ctx.Err() != nil {
		s.finish(h, Finish(), job)
		return
	}

	h.setState(StateRunning)
	out := s.invoke(h, job)
	s.finish(h, out, job)
}

// invoke выполняет job и перехватывает panic.
func (s *Scheduler) invoke(h *Handle, job Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked",
				"workflow_id", h.id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			out = Finish()
		}
	}()
	return job(h.ctx)
}

// finish снимает h с реестра или заменяет его повторной единицей.
func (s *Scheduler) finish(h *Handle, out Outcome, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		h.setState(StateDone)
		h.cancel()
		close(h.done)
	}()

	if current, ok := s.units[h.id]; !ok || current != h {
		// Отменена или вытеснена.
		return
	}

	if out.Rearm && !s.stopped && h.ctx.Err() == nil {
		delay := out.After
		if delay < 0 {
			delay = 0
		}
		next := newHandle(s.baseCtx, h.id, KindRetry, s.clock.Now().Add(delay), h.attempt+1)
		s.units[h.id] = next
		s.launch(next, delay, job)

		s.logger.Debug("task re-armed",
			"workflow_id", h.id,
			"delay", delay,
			"attempt", next.attempt,
		)
		return
	}

	delete(s.units, h.id)
}

// Cancel отменяет единицу для id и снимает её с реестра.
// Уже выполняющаяся Job увидит отмену через ctx. Возвращает false, если единицы нет.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	h, ok := s.units[id]
	if ok {
		delete(s.units, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	h.abort()
	s.logger.Debug("task cancelled", "workflow_id", id, "state", h.State().String())
	return true
}

// Lookup возвращает текущую единицу для id.
func (s *Scheduler) Lookup(id uuid.UUID) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.units[id]
	return h, ok
}

// Outstanding возвращает снимок всех невыполненных единиц, отсортированный по DueAt.
func (s *Scheduler) Outstanding() []Info {
	s.mu.Lock()
	infos := make([]Info, 0, len(s.units))
	for _, h := range s.units {
		infos = append(infos, h.info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].DueAt.Equal(infos[j].DueAt) {
			return infos[i].ID.String() < infos[j].ID.String()
		}
		return infos[i].DueAt.Before(infos[j].DueAt)
	})
	return infos
}

// Len возвращает количество невыполненных единиц.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}

// Stop отменяет все единицы и ждёт завершения выполняющихся Job.
// Повторные вызовы безопасны.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	handles := make([]*Handle, 0, len(s.units))
	for id, h := range s.units {
		handles = append(handles, h)
		delete(s.units, id)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.abort()
	}
	s.baseCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped", "cancelled", len(handles))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for tasks: %w", ctx.Err())
	}
}
