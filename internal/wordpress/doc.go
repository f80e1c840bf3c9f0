// Package wordpress — клиент WordPress REST API (wp-json/wp/v2).
//
// Client реализует Publisher для движка: берёт данные подключения
// пользователя из CredentialsSource и создаёт пост с Basic-аутентификацией
// по application password.
package wordpress
