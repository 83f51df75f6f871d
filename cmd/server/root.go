package main

import (
	"strings"
	"sync"

	"beatstore-media-service/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.local.yaml"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig загружает .env (если есть) и конфигурацию один раз за запуск
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// .env необязателен, переменные окружения могут быть заданы снаружи
		_ = godotenv.Load()

		path := defaultConfigPath
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadConfig(path)
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	serveCmd := newServeCommand(ctx)

	rootCmd := &cobra.Command{
		Use:           "beatstore-media",
		Short:         "Beat marketplace media delivery service",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Без подкоманды запускаем сервер
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}
