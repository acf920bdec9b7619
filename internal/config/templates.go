package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# tradeguard configuration

[store]
# Persistence adapter: "sqlite", "file" (YAML documents) or "memory"
driver = "sqlite"
# Database file for sqlite, directory for file
path = "~/.config/tradeguard/tradeguard.db"

[clock]
# Rules lock in this zone. Must be an IANA name, "Local" is not accepted.
time_zone = "America/New_York"
# Weekday time (24h) from which rule edits are locked
lock_at = "09:30"

[logging]
# debug, info, warn, error
level = "info"
console = false
file = true
file_path = "~/.config/tradeguard/logs/tradeguard.log"
# Rotation: megabytes per file, files kept, days kept
max_size = 20
max_backups = 5
max_age = 30

[audit]
# JSON-lines record of trade decisions, rule changes and ledger edits
enabled = true
file_path = "~/.config/tradeguard/audit/audit.jsonl"
max_size = 10
max_backups = 12
max_age = 365

[ui]
# Enable colored output
color_enabled = true
# Clock format used in lock status lines
time_format = "3:04 PM"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
