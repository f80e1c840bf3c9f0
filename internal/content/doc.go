// Package content реализует препроцессинг контента перед публикацией.
//
// Структура:
//   - template.go     — шаблоны по типу контента (категории, excerpt, теги, TOC)
//   - excerpt.go      — генерация excerpt из HTML
//   - tags.go         — автогенерация тегов по частоте слов
//   - toc.go          — оглавление по заголовкам h1–h6
//   - preprocessor.go — сборка ProcessedContent из Workflow
//
// Все функции чистые: без I/O, детерминированы при одинаковом входе.
package content
