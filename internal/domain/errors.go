package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrPageNotFound     = errors.New("page not found")
	ErrRenderFailed     = errors.New("render failed")
	ErrUnknownTextType  = errors.New("unknown text type")
	ErrEmptyGeneration  = errors.New("empty generation result")
	ErrInvalidJSON      = errors.New("generated text is not valid JSON")
	ErrTaskRunning      = errors.New("task already running")
	ErrQueueFull        = errors.New("task queue full")
	ErrPoolClosed       = errors.New("worker pool closed")
	ErrInvalidInput     = errors.New("invalid input")
)
