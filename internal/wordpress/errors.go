package wordpress

import "errors"

var (
	// ErrCredentialsNotFound — для пары (user, connection) нет активного подключения.
	ErrCredentialsNotFound = errors.New("wordpress credentials not found")

	// ErrRequest — запрос к WordPress не выполнен (сеть, таймаут, некорректный ответ).
	ErrRequest = errors.New("wordpress request failed")
)
