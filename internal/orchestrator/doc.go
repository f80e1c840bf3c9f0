// Package orchestrator — движок публикации контента.
//
// Orchestrator принимает спецификации workflows (API или очередь
// workflows.submit), хранит их в repo.WorkflowStore и взводит исполнение
// в scheduler.Scheduler. Прогон workflow: препроцессинг (content),
// публикация через Publisher, фиксация COMPLETED или FAILED. Неудачная
// публикация повторяется с экспоненциальной задержкой (retry) до max_retries.
//
// Структура:
//   - orchestrator.go — API движка (Create, StartWorkflow, Cancel, Retry, ...)
//   - processor.go    — прогон одного workflow и фиксация результата
//   - handlers.go     — обработчик заявок из RabbitMQ
package orchestrator
