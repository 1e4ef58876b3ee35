package config

import "time"

const (
	// Text generation
	ChatMaxTokens       = 100
	StoryMaxTokens      = 500
	MemoirTextMaxTokens = 300
	FileTextMaxTokens   = 1000
	FileJSONMaxTokens   = 800
	DefaultTemperature  = 0.7

	// Image staging
	ImageDownloadTimeout = 30 * time.Second
	ImageStagingLimit    = 4

	// Renderer timeout multipliers for image-heavy documents
	MemoirTimeoutFactor = 1.5
	PhotoTimeoutFactor  = 2.0

	// Date stamp on memoir covers
	CoverDateLayout = "2006年01月"

	// Filename timestamp
	FilenameTimeLayout = "20060102_150405"

	// Default media template for chat-started template sessions
	DefaultMediaTemplate = "memoir_vertical"

	// First timeline year when the birth date carries no year
	DefaultStartYear = 1985

	// Files listed by the /files command
	FilesListLimit = 10

	// Leading runes of a request kept in a generated file's name
	GeneratedNameRunes = 10
)
