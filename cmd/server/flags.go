package main

import (
	"flag"
	"fmt"

	"github.com/maynagashev/tokenvault/internal/config"
)

// parseFlags разбирает аргументы командной строки и собирает конфигурацию
// из файла, переменных окружения и флагов.
func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("tokenvault-server", flag.ContinueOnError)
	path := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("ошибка разбора флагов: %w", err)
	}

	cfg, err := config.Load(*path, fs)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	return cfg, nil
}
