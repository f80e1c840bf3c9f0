package mq

import "errors"

// ErrNoChannel — AMQP канал недоступен (нет соединения).
var ErrNoChannel = errors.New("no channel available")

// permanentError — ошибка, после которой сообщение не возвращается в очередь.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку обработчика как неисправимую:
// сообщение уходит в DLQ вместо повторной доставки.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка через Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
