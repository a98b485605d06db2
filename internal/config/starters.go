package config

import (
	"fmt"
	"os"
)

// starterYAML seeds config.yaml on first run. Everything in it can be
// removed; defaults cover the gaps.
const starterYAML = `# biofetch configuration.
# Environment overrides: BIOFETCH_HOME, BIOFETCH_LOG_LEVEL, BIOFETCH_OUTPUT_DIR,
# BIOFETCH_SERVICE_URL, UMAP_API_KEY, TELEGRAM_TOKEN, TELEGRAM_CHAT_ID.

log_level: info

service:
  # api_key: ""
  timeout_seconds: 30
  max_retries: 3

output:
  # dir defaults to <home>/artifacts
  format: csv # or workbook

datasets:
  categories: [] # empty fetches every dataset
  mapping_ttl_hours: 0 # 0 caches symbol mappings forever

panels:
  example:
    - KRAS
    - TP53
    - EGFR

# schedules:
#   - name: nightly
#     cron: "0 2 * * *"
#     panel: example

# notify:
#   on_failure: true
#   telegram:
#     enabled: true
#     chat_id: 0

# stringdb:
#   links_path: /data/string/9606.protein.links.full.v12.0.txt
#   pairs_path: /data/string/ProteinPairs.csv

# watch:
#   symbols_file: /data/symbols.txt
#   debounce_seconds: 2
`

// WriteStarter creates a commented starter config.yaml under homeDir.
// It refuses to overwrite an existing file.
func WriteStarter(homeDir string) error {
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return fmt.Errorf("create biofetch home: %w", err)
	}
	path := ConfigPath(homeDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(starterYAML), 0o644); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}
	return nil
}
