package drivekit

import (
	"mime"
	"path/filepath"
	"strings"
)

// Extensions the remote services commonly serve but the stdlib mime
// table does not know on every platform.
var extensionToMIME = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".7z":   "application/x-7z-compressed",
	".rar":  "application/x-rar-compressed",
	".iso":  "application/x-iso9660-image",
	".srt":  "application/x-subrip",
	".ass":  "text/x-ssa",
}

// GuessMediaType determines a media type from a file name. It returns ""
// for names with no recognizable extension; callers decide the fallback.
func GuessMediaType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if mediaType, ok := extensionToMIME[ext]; ok {
		return mediaType
	}
	return mime.TypeByExtension(ext)
}

// IsMediaFile reports whether the media type denotes audio, video or an
// image, the classes remote drives typically stream directly.
func IsMediaFile(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/") ||
		strings.HasPrefix(mediaType, "video/") ||
		strings.HasPrefix(mediaType, "image/")
}

// IsTextFile reports whether the media type denotes textual content.
func IsTextFile(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/json" ||
		mediaType == "application/xml"
}
