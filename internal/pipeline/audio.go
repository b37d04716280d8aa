package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// AudioResolver turns a note's stored audio reference into a source the
// transcription providers can read.
// Version: 1.0
type AudioResolver interface {
	Resolve(ctx context.Context, ref string) (provider.AudioSource, error)
}

// audioMIMETypes maps supported audio file extensions to MIME types.
var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
}

// StorageResolver resolves plain file paths, file:// references and http(s)
// URLs. It is stateless apart from the shared HTTP client and safe for
// concurrent use.
type StorageResolver struct {
	client *http.Client
}

// NewStorageResolver creates a resolver for local files and remote URLs.
func NewStorageResolver() *StorageResolver {
	// No client timeout: downloads run under the per-attempt context, which
	// already bounds them.
	return &StorageResolver{client: &http.Client{}}
}

// Resolve returns an AudioSource for the reference. Local references are
// checked for existence and a supported format up front, so a bad reference
// fails the job immediately instead of once per provider.
func (r *StorageResolver) Resolve(ctx context.Context, ref string) (provider.AudioSource, error) {
	if ref == "" {
		return nil, &InvalidInputError{Reason: "audio reference is empty"}
	}

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid audio URL %q: %w", ref, err)
		}
		return &urlAudioSource{
			ref:      ref,
			mimeType: mimeTypeForPath(u.Path),
			client:   r.client,
		}, nil

	case strings.HasPrefix(ref, "file://"):
		return newFileAudioSource(ref, strings.TrimPrefix(ref, "file://"))

	default:
		return newFileAudioSource(ref, ref)
	}
}

// mimeTypeForPath returns the MIME type for a path's extension, falling back
// to octet-stream for unknown or missing extensions (common on signed URLs).
func mimeTypeForPath(path string) string {
	if mime, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// fileAudioSource reads audio from the local filesystem.
type fileAudioSource struct {
	ref      string
	path     string
	mimeType string
}

func newFileAudioSource(ref, path string) (provider.AudioSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := audioMIMETypes[ext]
	if !ok {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("unsupported audio format %q", ext),
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("audio reference %q is a directory", path)
	}

	return &fileAudioSource{ref: ref, path: path, mimeType: mime}, nil
}

func (s *fileAudioSource) Ref() string {
	return s.ref
}

func (s *fileAudioSource) MIMEType() string {
	return s.mimeType
}

func (s *fileAudioSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	return f, nil
}

// urlAudioSource streams audio from a remote URL.
type urlAudioSource struct {
	ref      string
	mimeType string
	client   *http.Client
}

func (s *urlAudioSource) Ref() string {
	return s.ref
}

func (s *urlAudioSource) MIMEType() string {
	return s.mimeType
}

func (s *urlAudioSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build audio download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
