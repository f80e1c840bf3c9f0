// Package config загружает конфигурацию Autopost.
//
// Порядок применения: значения по умолчанию, затем TOML-файл
// (AUTOPOST_CONFIG или путь из флага), затем переменные окружения.
package config
