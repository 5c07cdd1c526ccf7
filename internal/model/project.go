package model

import "time"

// Provider identifiers for the supported log dialects.
const (
	ProviderClaude = "claude"
	ProviderCodex  = "codex"
)

// ProjectMetadata describes one discovered log directory.
type ProjectMetadata struct {
	LogPath      string    `json:"log_path"`
	DirName      string    `json:"dir_name"`
	DisplayName  string    `json:"display_name"`
	Provider     string    `json:"provider"`
	FileCount    int       `json:"file_count"`
	TotalSizeMB  float64   `json:"total_size_mb"`
	LastModified time.Time `json:"last_modified"`
}
