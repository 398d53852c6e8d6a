// Package media keeps synthesized clips and transcripts on local disk.
package media

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TTSRoute is the URL prefix under which synthesized clips are served.
const TTSRoute = "/static/tts/"

// Store writes files below a data directory:
//
//	<root>/tts/<uuid>.<ext>
//	<root>/transcripts/<session>/transcript_<stamp>.txt
type Store struct {
	root string
}

// NewStore creates the directory layout under root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{"tts", "transcripts"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// TTSDir is the directory served at TTSRoute.
func (s *Store) TTSDir() string { return filepath.Join(s.root, "tts") }

// SaveClip writes audio under a fresh name and returns its URL path.
func (s *Store) SaveClip(audio []byte) (string, error) {
	name := uuid.NewString() + extension(audio)
	if err := os.WriteFile(filepath.Join(s.TTSDir(), name), audio, 0o644); err != nil {
		return "", fmt.Errorf("save clip: %w", err)
	}
	return TTSRoute + name, nil
}

// SaveTranscript writes a session transcript and returns the file path.
func (s *Store) SaveTranscript(sessionID, transcript string, at time.Time) (string, error) {
	dir := filepath.Join(s.root, "transcripts", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}
	path := filepath.Join(dir, "transcript_"+at.UTC().Format("20060102_150405")+".txt")
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return path, nil
}

func extension(audio []byte) string {
	switch http.DetectContentType(audio) {
	case "audio/wave":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "application/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
