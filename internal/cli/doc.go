// Package cli реализует инструмент командной строки Autopost.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Autopost API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для создания workflows, контроля их статуса,
// отмены, ручного retry и предпросмотра контента.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Autopost API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	workflows, err := client.ListWorkflows(cli.ListWorkflowsOpts{UserID: "u1"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (go-pretty) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: autopost-cli workflow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: list, create, show, start, cancel, retry, preview
//   - tasks: взведённые единицы планировщика
//
// Каждая группа создаётся через фабричную функцию (NewWorkflowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
