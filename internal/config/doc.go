// Package config handles loading and validation of orgcmp configuration.
//
// Configuration is read from ~/.config/orgcmp/config.toml with environment
// variable overrides for directory settings.
//
// # Configuration Sources (highest priority first)
//
//   - ORGCMP_CACHE_DIR env var: cache root directory
//   - ORGCMP_WORK_DIR env var: root of retrieved source snapshots
//   - ORGCMP_CLI env var: platform CLI binary
//   - ORGCMP_THEME / ORGCMP_THEME_MODE env vars: UI theme
//   - Config file settings
//   - Default values
//
// # Key Settings
//
//   - cache_dir: where cache_index.json and the per-org blobs live
//   - work_dir: where retrievals are written, one directory per attempt
//   - max_files: default selection bound (2..10)
//   - metadata: metadata types retrieved on refresh
//   - retrieve_timeout: upper bound for a single retrieval ("10m")
//   - refresh_concurrency: orgs refreshed in parallel by "refresh" (default 1)
//
// # Path Validation
//
// Directory paths must be absolute or start with ~ (no relative paths like "."
// or "..") to avoid confusion about the working directory.
package config
