package domain

import (
	"strings"
	"time"
)

// Message types derived from the content type of a stored file.
const (
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// FileMeta describes one stored object.
type FileMeta struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	FilePath         string    `json:"file_path"`
	ContentType      string    `json:"content_type"`
	FileSize         int64     `json:"file_size"`
	UploadTime       time.Time `json:"upload_time"`
	MessageType      string    `json:"message_type"`
	OwnerType        OwnerType `json:"owner_type"`
	OwnerID          string    `json:"owner_id"`
	UploaderID       string    `json:"uploader_id"`
}

func (m FileMeta) Owner() Owner {
	return Owner{Type: m.OwnerType, ID: m.OwnerID}
}

// Requester identifies who asks for a file. Empty fields mean unknown.
type Requester struct {
	UserID  string
	GroupID string
}

func (r Requester) IsZero() bool { return r.UserID == "" && r.GroupID == "" }

// MessageTypeFor classifies a content type.
func MessageTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MessageTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return MessageTypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return MessageTypeAudio
	default:
		return MessageTypeFile
	}
}

// GeneratedKind is the kind of file written on request from chat.
type GeneratedKind string

const (
	GeneratedReport GeneratedKind = "report"
	GeneratedJSON   GeneratedKind = "json"
	GeneratedText   GeneratedKind = "text"
)

// ContentType is the content type the generated file is stored with.
func (k GeneratedKind) ContentType() string {
	if k == GeneratedJSON {
		return "application/json"
	}
	return "text/plain"
}

// Ext is the filename extension, without the dot.
func (k GeneratedKind) Ext() string {
	if k == GeneratedJSON {
		return "json"
	}
	return "txt"
}
