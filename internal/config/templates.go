package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Crypto Analyst Swarm Configuration
#
# Every key can be overridden with SWARM_<SECTION>_<KEY>, e.g. SWARM_DATA_DIR.

data:
  # Root of indicators/, agents/, outputs/, consensus/ and briefs/ (DATA_STORAGE_PATH)
  dir: data
  # Consensus score bands (consensus_to_action)
  action_map: config/action_map.yaml
  # Archive each day's final consensus in SQLite
  history: false
  # Defaults to <dir>/history.db
  history_db: ""

agents:
  # Default model for llm agents that do not name one
  model: gpt-4o-mini
  temperature: 0.7
  # Whole swarm run deadline
  timeout: 60s
  # OpenAI-compatible endpoint; empty uses the public API
  base_url: ""

indicators:
  cbbi_url: https://ccbitcoinindex.appspot.com/api/score
  rainbow_url: https://api.blockchaincenter.net/v1/rainbow
  timeout: 30s
  max_attempts: 3
  initial_delay: 1s
  max_delay: 30s
  cache_ttl: 1h
  # Seed for mock data; 0 derives it from the date
  mock_seed: 0

brief:
  # text/template file; empty uses the built-in brief
  template: ""
  key_indicators:
    - CBBI
    - Rainbow Bands
    - Pi Cycle

discord:
  enabled: true
  # bot or webhook
  method: bot
  # DISCORD_MARKET_PULSE_CHANNEL_ID
  channel_id: ""
  webhook_url: ""
  username: Crypto Analyst Swarm
  avatar_url: ""

telegram:
  enabled: false
  chat_id: ""

logging:
  # debug, info, warn, error
  level: info
  console: true
  file: false
  max_size_mb: 50
  max_backups: 7
  max_age_days: 30
`

const credentialsTemplate = `# Crypto Analyst Swarm Credentials
# Keep this file private (mode 0600).

credentials:
  # OPENAI_API_KEY
  openai_api_key: ""
  # DISCORD_BOT_TOKEN
  discord_bot_token: ""
  # TELEGRAM_BOT_TOKEN
  telegram_bot_token: ""
`

const actionMapTemplate = `# Consensus score bands, matched in order. min is inclusive, max exclusive.
consensus_to_action:
  - max: 40
    action: de-risk
    emoji: "🔴"
  - min: 40
    max: 60
    action: hold
    emoji: "🟡"
  - min: 60
    action: buy
    emoji: "🟢"
`

// InitResult lists the files written by Init.
type InitResult struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// Init writes commented config, credentials and action map templates into
// dir. Existing files are kept unless force is set.
func Init(dir string, force bool) (*InitResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	res := &InitResult{}
	files := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{"config.yaml", configTemplate, 0644},
		// Use restricted permissions for credentials file
		{"credentials.yaml", credentialsTemplate, 0600},
		{"action_map.yaml", actionMapTemplate, 0644},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil && !force {
			res.Skipped = append(res.Skipped, path)
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), f.mode); err != nil {
			return nil, fmt.Errorf("writing %s template: %w", f.name, err)
		}
		res.Written = append(res.Written, path)
	}
	return res, nil
}

// Template returns the commented config template.
func Template() string {
	return configTemplate
}
