package transcode

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/gwlsn/pipeline/internal/model"
)

// ContainerMuxer combines the encoded video file, the audio intermediate,
// and the non-burn-in subtitle sidecars into the final output
// (spec.md §4.5 "Container muxer").
type ContainerMuxer struct {
	EncoderPath string
}

func NewContainerMuxer(path string) *ContainerMuxer {
	return &ContainerMuxer{EncoderPath: path}
}

// Mux writes destPath from videoPath, audioPath, and the given subtitle
// sidecars, setting language/default/forced flags per subtitle from the
// source stream.
func (c *ContainerMuxer) Mux(ctx context.Context, videoPath, audioPath string, subs []SubtitleSidecar, destPath string) error {
	args := []string{"-y", "-i", videoPath, "-i", audioPath}
	for _, s := range subs {
		args = append(args, "-i", s.Path)
	}

	args = append(args, "-map", "0:v", "-map", "1:a", "-c:v", "copy", "-c:a", "copy")

	for i, s := range subs {
		inputIdx := i + 2
		args = append(args, "-map", fmt.Sprintf("%d:0", inputIdx), "-c:s", "copy")
		args = append(args, fmt.Sprintf("-metadata:s:s:%d", i), fmt.Sprintf("language=%s", s.Language))
		args = append(args, fmt.Sprintf("-disposition:s:%d", i), dispositionFlags(s.Default, s.Forced))
	}

	args = append(args, destPath)

	cmd := exec.CommandContext(ctx, c.EncoderPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return model.NewEncoderError(model.ErrContainerMuxFailed, code, string(out))
	}
	return nil
}

func dispositionFlags(isDefault, isForced bool) string {
	flags := ""
	if isDefault {
		flags += "+default"
	}
	if isForced {
		flags += "+forced"
	}
	if flags == "" {
		return "0"
	}
	return flags
}
