package file

import (
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType classifies a stored file by its extension.
type FileType string

const (
	TypeDocument FileType = "document"
	TypeImage    FileType = "image"
	TypeVideo    FileType = "video"
	TypeAudio    FileType = "audio"
	TypeOther    FileType = "other"
)

// Record represents a stored file's metadata.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Extension  string    `json:"extension"`
	Type       FileType  `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	BlobRef    string    `json:"blob_ref"`
	OwnerID    uuid.UUID `json:"owner_id"`
	OwnerEmail string    `json:"owner_email"`
	SharedWith []string  `json:"shared_with"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var typeByExtension = map[string]FileType{
	"pdf": TypeDocument, "doc": TypeDocument, "docx": TypeDocument,
	"txt": TypeDocument, "md": TypeDocument, "rtf": TypeDocument,
	"xls": TypeDocument, "xlsx": TypeDocument, "csv": TypeDocument,
	"ppt": TypeDocument, "pptx": TypeDocument, "odt": TypeDocument,

	"jpg": TypeImage, "jpeg": TypeImage, "png": TypeImage, "gif": TypeImage,
	"bmp": TypeImage, "svg": TypeImage, "webp": TypeImage, "heic": TypeImage,

	"mp4": TypeVideo, "avi": TypeVideo, "mov": TypeVideo, "mkv": TypeVideo,
	"webm": TypeVideo, "flv": TypeVideo,

	"mp3": TypeAudio, "wav": TypeAudio, "ogg": TypeAudio, "flac": TypeAudio,
	"aac": TypeAudio, "m4a": TypeAudio,
}

// DeriveType maps a file extension onto its FileType. Unknown extensions
// classify as TypeOther; the mapping is total and never fails.
func DeriveType(extension string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if t, ok := typeByExtension[ext]; ok {
		return t
	}
	return TypeOther
}

// SplitFilename separates an uploaded filename into a base name and a
// lowercase extension. Files without an extension keep an empty one.
func SplitFilename(original string) (name, extension string) {
	original = strings.TrimSpace(original)
	ext := filepath.Ext(original)
	name = strings.TrimSuffix(original, ext)
	if name == "" {
		name = original
		ext = ""
	}
	return name, strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsValidShareTarget reports whether addr is a syntactically well-formed
// address that may be added to a sharing list.
func IsValidShareTarget(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	// reject display-name forms like "Bob <bob@x.com>"
	return parsed.Address == addr
}

// BrowseGroup returns the navigation category for a file type. Video and
// audio collapse into a shared "media" view; other types pluralize.
func (t FileType) BrowseGroup() string {
	switch t {
	case TypeVideo, TypeAudio:
		return "media"
	case TypeDocument:
		return "documents"
	case TypeImage:
		return "images"
	default:
		return "others"
	}
}

// ParseBrowseGroup inverts BrowseGroup for browse pages. Unknown groups
// yield an empty set, which downstream queries treat as "all types".
func ParseBrowseGroup(group string) []FileType {
	switch strings.ToLower(strings.TrimSpace(group)) {
	case "documents":
		return []FileType{TypeDocument}
	case "images":
		return []FileType{TypeImage}
	case "media":
		return []FileType{TypeVideo, TypeAudio}
	case "others":
		return []FileType{TypeOther}
	default:
		return nil
	}
}

// SharedWithContains reports whether email is present in the record's
// sharing list.
func (r Record) SharedWithContains(email string) bool {
	for _, e := range r.SharedWith {
		if e == email {
			return true
		}
	}
	return false
}
