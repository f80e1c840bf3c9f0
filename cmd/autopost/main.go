// Autopost — движок публикации контента.
//
// Принимает workflows через HTTP API и очередь RabbitMQ, готовит контент
// (шаблон, excerpt, теги, оглавление) и публикует его в WordPress с
// автоматическими повторами.
//
// Использование:
//
//	autopost [--config PATH] serve
//	autopost config init [PATH]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "autopost",
		Short:         "Autopost — content publishing workflow engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config (default: $AUTOPOST_CONFIG)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newConfigCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
