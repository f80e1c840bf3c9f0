package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrAlreadyArmed — для id уже есть невыполненная единица.
	ErrAlreadyArmed = errors.New("task already armed")

	// ErrStopped — планировщик остановлен, новые единицы не принимаются.
	ErrStopped = errors.New("scheduler stopped")
)
