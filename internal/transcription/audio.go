package transcription

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

var supportedFormats = []string{".mp3", ".mp4", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".amr"}

// ValidateAudioFormat checks if the media file format is accepted by the transcription service
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(path.Ext(filename))

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ValidateAudioLocation checks that an audio location is an S3 or HTTPS URI
// pointing at a supported media file
func ValidateAudioLocation(location string) error {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return fmt.Errorf("invalid audio location: %v", err)
	}
	if u.Scheme != "s3" && u.Scheme != "https" {
		return fmt.Errorf("unsupported audio location scheme %q (want s3 or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("audio location %q has no bucket or host", location)
	}
	if !ValidateAudioFormat(u.Path) {
		return fmt.Errorf("unsupported audio format %q", path.Ext(u.Path))
	}
	return nil
}
