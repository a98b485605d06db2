package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/basket/biofetch/internal/config"
	"github.com/basket/biofetch/internal/shared"
)

func printConfigUsage() {
	fmt.Fprintf(os.Stderr, `usage: biofetch config <action>

ACTIONS:
  show                Print the effective configuration (secrets redacted)
  path                Print the config.yaml path
  set-key <KEY>       Store the service API key in config.yaml
  set-output <DIR>    Store the artifact output directory in config.yaml
`)
}

func runConfigCommand(args []string) int {
	if len(args) == 0 {
		printConfigUsage()
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		printConfigUsage()
		return 0

	case "path":
		fmt.Println(config.ConfigPath(config.HomeDir()))
		return 0

	case "show":
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "config load: %v\n", err)
			return 1
		}
		out, err := yaml.Marshal(redactedConfig(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal config: %v\n", err)
			return 1
		}
		fmt.Printf("# %s\n", config.ConfigPath(cfg.HomeDir))
		os.Stdout.Write(out)
		printEnvOverrides()
		return 0

	case "set-key":
		if len(args) != 2 || args[1] == "" {
			fmt.Fprintln(os.Stderr, "usage: biofetch config set-key <KEY>")
			return 2
		}
		if err := config.SetAPIKey(config.HomeDir(), args[1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("service api key updated")
		return 0

	case "set-output":
		if len(args) != 2 || args[1] == "" {
			fmt.Fprintln(os.Stderr, "usage: biofetch config set-output <DIR>")
			return 2
		}
		if err := config.SetOutputDir(config.HomeDir(), args[1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("output dir updated")
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown config action %q\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

// redactedConfig blanks secrets before the config is printed.
func redactedConfig(cfg config.Config) config.Config {
	if cfg.Service.APIKey != "" {
		cfg.Service.APIKey = "[REDACTED]"
	}
	if cfg.Notify.Telegram.Token != "" {
		cfg.Notify.Telegram.Token = "[REDACTED]"
	}
	return cfg
}

// printEnvOverrides lists environment variables that override the file,
// so show reflects the effective configuration. Secret values are
// masked.
func printEnvOverrides() {
	keys := []string{
		"BIOFETCH_HOME",
		"BIOFETCH_LOG_LEVEL",
		"BIOFETCH_OUTPUT_DIR",
		"BIOFETCH_SERVICE_URL",
		"BIOFETCH_MAPPING_TTL_HOURS",
		"UMAP_API_KEY",
		"TELEGRAM_TOKEN",
		"TELEGRAM_CHAT_ID",
	}
	printed := false
	for _, key := range keys {
		val, ok := os.LookupEnv(key)
		if !ok || val == "" {
			continue
		}
		if !printed {
			fmt.Println("# environment overrides:")
			printed = true
		}
		fmt.Printf("#   %s=%s\n", key, shared.RedactEnvValue(key, val))
	}
}
