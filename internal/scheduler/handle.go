package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind — вид запуска единицы исполнения.
type Kind string

const (
	KindImmediate Kind = "immediate"
	KindScheduled Kind = "scheduled"
	KindRetry     Kind = "retry"
)

// State — состояние единицы исполнения.
type State int32

const (
	StateWaiting State = iota
	StateRunning
	StateDone
)

// String возвращает строковое представление состояния.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	default:
		return "done"
	}
}

// Handle — единица исполнения, взведённая для одного id.
//
// Handle не переиспользуется: повторный запуск (retry) получает новый Handle
// с тем же id и Attempt+1.
type Handle struct {
	id      uuid.UUID
	kind    Kind
	dueAt   time.Time
	attempt int

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	state     atomic.Int32
	cancelled atomic.Bool
}

func newHandle(parent context.Context, id uuid.UUID, kind Kind, dueAt time.Time, attempt int) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:      id,
		kind:    kind,
		dueAt:   dueAt,
		attempt: attempt,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// ID возвращает идентификатор workflow.
func (h *Handle) ID() uuid.UUID { return h.id }

// Kind возвращает вид запуска.
func (h *Handle) Kind() Kind { return h.kind }

// DueAt возвращает время, на которое назначен запуск.
func (h *Handle) DueAt() time.Time { return h.dueAt }

// Attempt возвращает номер повторного запуска (0 для первого).
func (h *Handle) Attempt() int { return h.attempt }

// State возвращает текущее состояние.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done закрывается, когда единица завершилась и снята с реестра.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancelled сообщает, была ли единица отменена через Cancel или Stop.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

func (h *Handle) setState(s State) { h.state.Store(int32(s)) }

func (h *Handle) abort() {
	h.cancelled.Store(true)
	h.cancel()
}

// Info — снимок Handle для отображения.
type Info struct {
	ID      uuid.UUID `json:"id"`
	Kind    Kind      `json:"kind"`
	State   string    `json:"state"`
	DueAt   time.Time `json:"due_at"`
	Attempt int       `json:"attempt"`
}

func (h *Handle) info() Info {
	return Info{
		ID:      h.id,
		Kind:    h.kind,
		State:   h.State().String(),
		DueAt:   h.dueAt,
		Attempt: h.attempt,
	}
}
