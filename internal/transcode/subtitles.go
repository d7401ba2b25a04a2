package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/media"
	"github.com/gwlsn/pipeline/internal/model"
)

// SubtitleSidecar describes one extracted subtitle file ready to be muxed.
type SubtitleSidecar struct {
	SourceIndex int
	Path        string
	ImageBased  bool
	Language    string
	Default     bool
	Forced      bool
}

// SubtitleExtractor writes every non-excluded subtitle track, burn-in
// tracks included, to sidecar files under the job temp directory
// (spec.md §4.5). A failure on
// one subtitle is a warning, not fatal — extraction continues.
type SubtitleExtractor struct {
	EncoderPath string
}

func NewSubtitleExtractor(path string) *SubtitleExtractor {
	return &SubtitleExtractor{EncoderPath: path}
}

// Extract writes one sidecar file per non-exclude decision. The extension
// is chosen from the stream's image-based flag: ".sup" for image-based,
// ".srt" otherwise.
func (s *SubtitleExtractor) Extract(ctx context.Context, input, tempDir string, streams []media.SubtitleStream, decisions []media.SubtitleDecision) []SubtitleSidecar {
	byIndex := make(map[int]media.SubtitleStream, len(streams))
	for _, st := range streams {
		byIndex[st.Index] = st
	}

	var out []SubtitleSidecar
	for _, d := range decisions {
		if d.Action == media.SubtitleExclude {
			continue
		}
		st := byIndex[d.SourceIndex]
		ext := ".srt"
		if st.ImageBased {
			ext = ".sup"
		}
		dest := filepath.Join(tempDir, fmt.Sprintf("sub_%d%s", d.SourceIndex, ext))

		args := []string{"-y", "-i", input, "-map", fmt.Sprintf("0:%d", d.SourceIndex), "-c:s", "copy", dest}
		cmd := exec.CommandContext(ctx, s.EncoderPath, args...)
		if out2, err := cmd.CombinedOutput(); err != nil {
			logging.Warn("subtitle extraction failed, skipping track",
				"source_index", d.SourceIndex, "error", err, "output", string(out2))
			continue
		}

		out = append(out, SubtitleSidecar{
			SourceIndex: d.SourceIndex,
			Path:        dest,
			ImageBased:  st.ImageBased,
			Language:    st.Language,
			Default:     st.Disposition.Default,
			Forced:      st.Disposition.Forced,
		})
	}
	return out
}

// BurnIn synthesizes a video filter overlaying one subtitle stream atop
// the just-encoded video, re-emitting video+audio into outputPath
// (spec.md §4.5 "Subtitle burn-in").
type BurnIn struct {
	EncoderPath string
}

func NewBurnIn(path string) *BurnIn {
	return &BurnIn{EncoderPath: path}
}

func (b *BurnIn) Apply(ctx context.Context, videoPath string, subtitleSourceIndex int, originalInput, outputPath string) error {
	filter := fmt.Sprintf("[0:v][1:%d]overlay", subtitleSourceIndex)
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", originalInput,
		"-filter_complex", filter,
		"-c:a", "copy",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, b.EncoderPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return model.NewEncoderError(model.ErrEncoderFailed, code, string(out))
	}
	return nil
}
