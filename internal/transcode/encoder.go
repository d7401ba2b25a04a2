package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/model"
)

// VideoEncoder invokes the external chunked encoder (spec.md §4.5).
type VideoEncoder struct {
	EncoderPath string
}

func NewVideoEncoder(path string) *VideoEncoder {
	return &VideoEncoder{EncoderPath: path}
}

// EncodeParams are the arguments spec.md §4.5 names for the encoder
// invocation.
type EncodeParams struct {
	Input         string
	Output        string
	TempDir       string
	EncoderName   config.Encoder
	TargetQuality float64
	WorkerCount   int
	ExtraParams   []string
}

// Encode runs the chunked encoder, forwarding parsed progress to
// progressCh. On non-zero exit it returns an EncoderError carrying the
// exit code and stderr tail.
func (e *VideoEncoder) Encode(ctx context.Context, p EncodeParams, progressCh chan<- Progress) error {
	args := []string{
		"--input", p.Input,
		"--output", p.Output,
		"--temp-dir", p.TempDir,
		"--encoder", string(p.EncoderName),
		"--target-quality", strconv.FormatFloat(p.TargetQuality, 'f', -1, 64),
		"--workers", strconv.Itoa(p.WorkerCount),
	}
	args = append(args, p.ExtraParams...)

	cmd := exec.CommandContext(ctx, e.EncoderPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrSubprocessSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSubprocessSpawnFailed, err)
	}

	tail := streamProgress(stderr, progressCh)

	if err := cmd.Wait(); err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return model.NewEncoderError(model.ErrEncoderFailed, code, tail)
	}
	return nil
}
