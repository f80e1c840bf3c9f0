// Package repo содержит хранилища workflows и подключений к WordPress.
//
// MemoryStore используется по умолчанию и в тестах, WorkflowRepo и
// ConnectionRepo работают поверх PostgreSQL (pgx).
package repo
