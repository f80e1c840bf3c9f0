package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrWorkflowNotFound — workflow не найден.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidState — операция недопустима в текущем статусе workflow.
	ErrInvalidState = errors.New("invalid workflow state")

	// ErrValidation — спецификация workflow не прошла валидацию.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyStarted — для workflow уже взведена единица исполнения.
	ErrAlreadyStarted = errors.New("workflow already started")

	// ErrManualRetryLimit — исчерпан лимит ручных повторов.
	ErrManualRetryLimit = errors.New("manual retry limit reached")

	// ErrStopped — оркестратор остановлен.
	ErrStopped = errors.New("orchestrator stopped")

	// ErrPanic — обработка workflow завершилась panic.
	ErrPanic = errors.New("processing panicked")
)
