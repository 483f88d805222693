// Package speech turns narration into audio files and audio into text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for audio names that were not produced by a Dir.
var ErrInvalidName = errors.New("invalid audio file name")

var audioNameRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(mp3|wav)$`)

// Synthesizer renders narration to an audio file and returns its name
// inside the audio directory.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, slower bool) (string, error)
}

// Voice is a selectable synthesis voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoiceSelector is implemented by synthesizers that can speak with a
// voice other than the configured one.
type VoiceSelector interface {
	WithVoice(id string) Synthesizer
}

// VoiceLister is implemented by synthesizers that know their voices.
type VoiceLister interface {
	Voices() []Voice
}

// Transcription is the text recognized in an audio clip.
type Transcription struct {
	Text string `json:"text"`
	// Confidence is in [0, 1]; 0 when the backend gives no estimate.
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// Transcriber recognizes speech in an audio clip.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (Transcription, error)
}

// Dir is the directory generated audio is written to and served from.
type Dir struct {
	path string
}

// NewDir creates the audio directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// newFile returns a fresh uuid-based name with the given extension and its full path.
func (d *Dir) newFile(ext string) (name, full string) {
	name = uuid.NewString() + "." + ext
	return name, filepath.Join(d.path, name)
}

// Open opens a generated audio file by name.
func (d *Dir) Open(name string) (*os.File, error) {
	if !audioNameRegex.MatchString(name) {
		return nil, ErrInvalidName
	}
	return os.Open(filepath.Join(d.path, name))
}

// ContentType returns the MIME type for a generated audio name.
func ContentType(name string) string {
	if filepath.Ext(name) == ".wav" {
		return "audio/wav"
	}
	return "audio/mpeg"
}
