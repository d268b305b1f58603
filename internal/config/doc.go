// Package config loads and resolves commitq's run configuration.
//
// # Configuration Precedence
//
// Values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--config, --theme, --format, --debug)
//  2. Environment variables (COMMITQ_CONFIG, COMMITQ_WS_URL, COMMITQ_THEME,
//     COMMITQ_FORMAT, COMMITQ_DEBUG, NO_COLOR)
//  3. Config file (config.json, .commitq.yaml, or $XDG_CONFIG_HOME/commitq/config.yaml)
//  4. Hardcoded defaults
//
// # Config File
//
// The file may be JSON or YAML. Files named *.json, and any document starting
// with '{', go through encoding/json (repeated keys: last wins); the rest
// through the YAML decoder. Required
// keys: ws_url, repo_url, user_id, chat_id, project_type, commits. An empty
// commits list is valid. test_command defaults to "pytest tests/" when the key
// is absent; an explicit null or empty string sends null.
//
// Any missing or malformed file, or missing required key, is fatal.
package config
