// internal/session/config.go
package session

import "time"

type Config struct {
	// UploadRoot mirrors the backend's upload-storage convention: the
	// original image path is always "<UploadRoot>/<filename>".
	UploadRoot     string
	PromptTemplate string
	CacheTTL       time.Duration
	MaxResults     int
}

func LoadConfig() *Config {
	return &Config{
		UploadRoot:     "uploads",
		PromptTemplate: "Replace the selected furniture with %s so it blends naturally into the room.",
		CacheTTL:       5 * time.Minute,
		MaxResults:     10,
	}
}
