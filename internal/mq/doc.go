// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - events.go     — EventNotifier, события жизненного цикла workflows
//
// Типы сообщений:
//   - workflow.submit          — заявка на создание и запуск workflow
//   - workflow.completed       — публикация прошла успешно
//   - workflow.failed          — публикация провалилась, повторов не будет
//   - workflow.retry_scheduled — назначен автоматический повтор
//   - workflow.cancelled       — workflow отменён
//
// Exchanges:
//   - autopost.workflows — заявки (direct)
//   - autopost.events    — события (topic, routing key = тип события)
//   - autopost.dlq       — dead letter queue
package mq
