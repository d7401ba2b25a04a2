package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/gwlsn/pipeline/internal/media"
	"github.com/gwlsn/pipeline/internal/model"
)

// AudioMuxer produces the audio intermediate file for a job (spec.md §4.5
// "Audio muxer adapter").
type AudioMuxer struct {
	EncoderPath string
}

func NewAudioMuxer(path string) *AudioMuxer {
	return &AudioMuxer{EncoderPath: path}
}

// BuildAudioArgs translates the audio decisions into a sequence of
// map + codec + bitrate + channel-count arguments. The ordinal output-track
// counter advances once per emitted track; a downmix variant emits the
// original track followed by a stereo re-encode of the same source index
// with channel count 2.
func BuildAudioArgs(decisions []media.AudioDecision) []string {
	var args []string
	ordinal := 0

	emit := func(sourceIndex int, codec, bitrate string, channels int) {
		args = append(args, "-map", fmt.Sprintf("0:%d", sourceIndex))
		codecFlag := fmt.Sprintf("-c:a:%d", ordinal)
		if codec == "" {
			args = append(args, codecFlag, "copy")
		} else {
			args = append(args, codecFlag, codec)
			if bitrate != "" {
				args = append(args, fmt.Sprintf("-b:a:%d", ordinal), bitrate)
			}
			if channels > 0 {
				args = append(args, fmt.Sprintf("-ac:a:%d", ordinal), strconv.Itoa(channels))
			}
		}
		ordinal++
	}

	for _, d := range decisions {
		switch d.Action {
		case media.AudioExclude:
			continue
		case media.AudioPassthrough:
			emit(d.SourceIndex, "", "", 0)
		case media.AudioTranscode:
			emit(d.SourceIndex, d.Codec, d.Bitrate, 0)
		case media.AudioPassthroughDownmix:
			emit(d.SourceIndex, "", "", 0)
			emit(d.SourceIndex, d.DownmixCodec, d.DownmixBitrate, 2)
		case media.AudioTranscodeDownmix:
			emit(d.SourceIndex, d.Codec, d.Bitrate, 0)
			emit(d.SourceIndex, d.DownmixCodec, d.DownmixBitrate, 2)
		}
	}

	return args
}

// Mux invokes the external audio muxer to produce outputPath from the
// decisions computed for input.
func (m *AudioMuxer) Mux(ctx context.Context, input, outputPath string, decisions []media.AudioDecision) error {
	args := append([]string{"-y", "-i", input}, BuildAudioArgs(decisions)...)
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, m.EncoderPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return model.NewEncoderError(model.ErrAudioMuxFailed, code, string(out))
	}
	return nil
}
