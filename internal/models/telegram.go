package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a dump run notification.
type TelegramMessage struct {
	Success   bool
	RunID     string
	Host      string
	Databases []string
	StartTime time.Time
	Duration  time.Duration

	// Artifact info (if successful).
	ArtifactKey string
	SizeBytes   int64

	// Error info (if failed).
	ErrorMessage string
	FailedStage  string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	MessageID   int64
	Error       error
}
