package whispercpp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// ProviderName is the stable identifier recorded on notes and attempt rows.
const ProviderName = "whispercpp"

// maxStderr bounds how much stderr tail is carried into error messages.
const maxStderr = 512

// Fallback binary names used when the configuration leaves them empty.
const (
	defaultBinary = "whisper-cli"
	defaultFFmpeg = "ffmpeg"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Client transcribes audio with a local whisper.cpp binary.
type Client struct {
	binaryPath string
	modelPath  string
	ffmpegPath string
	runner     commandRunner
}

var _ provider.Transcriber = (*Client)(nil)

// New creates a local whisper.cpp transcriber. The model file must exist;
// catching a bad path at startup beats discovering it on the first failover.
func New(cfg config.WhisperCPPConfig) (*Client, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("whispercpp model path cannot be empty")
	}

	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp model not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("whispercpp model path %q is a directory", cfg.ModelPath)
	}

	binary := cfg.BinaryPath
	if binary == "" {
		binary = defaultBinary
	}
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = defaultFFmpeg
	}

	return &Client{
		binaryPath: binary,
		modelPath:  cfg.ModelPath,
		ffmpegPath: ffmpeg,
		runner:     &execRunner{},
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// Transcribe materializes the audio into a temporary workspace, converts it
// to the WAV layout the whisper binary expects and reads back the transcript
// it writes.
func (c *Client) Transcribe(ctx context.Context, audio provider.AudioSource) (*provider.TranscriptResult, error) {
	tempDir, err := os.MkdirTemp("", "echoscribe-whisper-*")
	if err != nil {
		return nil, provider.Transient(ProviderName, fmt.Errorf("failed to create temp workspace: %w", err))
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	inputPath, err := c.materialize(ctx, audio, tempDir)
	if err != nil {
		return nil, err
	}

	wavPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	if err := c.convert(ctx, inputPath, wavPath); err != nil {
		return nil, err
	}

	textBase := filepath.Join(tempDir, "transcript")
	if err := c.transcribe(ctx, wavPath, textBase); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(textBase + ".txt")
	if err != nil {
		return nil, provider.Permanent(ProviderName, fmt.Errorf("transcription produced no transcript file: %w", err))
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, provider.Permanent(ProviderName, errors.New("transcription returned no text"))
	}

	// whisper.cpp reports neither confidence nor language in txt output.
	return &provider.TranscriptResult{Text: text}, nil
}

// materialize copies the audio source into the workspace so both external
// binaries can read it from disk.
func (c *Client) materialize(ctx context.Context, audio provider.AudioSource, dir string) (string, error) {
	reader, err := audio.Open(ctx)
	if err != nil {
		return "", provider.Transient(ProviderName, fmt.Errorf("failed to open audio source: %w", err))
	}
	defer func() { _ = reader.Close() }()

	inputPath := filepath.Join(dir, inputFilename(audio.Ref()))
	f, err := os.Create(inputPath)
	if err != nil {
		return "", provider.Transient(ProviderName, fmt.Errorf("failed to create input file: %w", err))
	}
	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		return "", provider.Transient(ProviderName, fmt.Errorf("failed to write input file: %w", err))
	}
	if err := f.Close(); err != nil {
		return "", provider.Transient(ProviderName, fmt.Errorf("failed to write input file: %w", err))
	}
	return inputPath, nil
}

func (c *Client) convert(ctx context.Context, inputPath, wavPath string) error {
	if _, err := c.runCommand(ctx, "audio conversion", c.ffmpegPath, buildConvertArgs(inputPath, wavPath)...); err != nil {
		return err
	}
	if _, err := os.Stat(wavPath); err != nil {
		return provider.Permanent(ProviderName, fmt.Errorf("audio conversion produced no output: %w", err))
	}
	return nil
}

func (c *Client) transcribe(ctx context.Context, wavPath, textBase string) error {
	_, err := c.runCommand(ctx, "transcription", c.binaryPath, buildWhisperArgs(c.modelPath, wavPath, textBase)...)
	return err
}

// runCommand executes one external command and classifies its failure. A
// context that ended mid-run stays transient so the caller's policy applies;
// everything else about a local binary is permanent.
func (c *Client) runCommand(ctx context.Context, stage, name string, args ...string) (commandResult, error) {
	result, err := c.runner.Run(ctx, name, args...)
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return result, provider.Transient(ProviderName, fmt.Errorf("%s interrupted: %w", stage, ctx.Err()))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, provider.Permanent(ProviderName,
			fmt.Errorf("%s failed with exit code %d: %s", stage, result.ExitCode, stderrSnippet(result.Stderr)))
	}
	return result, provider.Permanent(ProviderName, fmt.Errorf("%s failed: %w", stage, err))
}

// buildConvertArgs builds the ffmpeg invocation for mono 16 kHz PCM WAV
// output, the input layout whisper.cpp expects.
func buildConvertArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds the whisper.cpp invocation for txt transcript
// export next to textBase.
func buildWhisperArgs(modelPath, audioPath, textBase string) []string {
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
	}
}

// inputFilename keeps the source extension as a container hint for ffmpeg.
func inputFilename(ref string) string {
	ext := ""
	if u, err := url.Parse(ref); err == nil {
		ext = path.Ext(u.Path)
	}
	return "input" + ext
}

// stderrSnippet returns the tail of stderr, where external binaries print
// their actual error.
func stderrSnippet(stderr string) string {
	s := strings.TrimSpace(stderr)
	if s == "" {
		return "no stderr output"
	}
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
