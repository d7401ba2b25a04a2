package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/model"
)

// Prober invokes the external probe binary and parses its JSON output into
// a MediaInfo (spec.md §4.5 "Probe adapter").
type Prober struct {
	ProbePath string
}

func NewProber(probePath string) *Prober {
	return &Prober{ProbePath: probePath}
}

// ffprobe's own JSON document shape.
type probeDoc struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	Index            int               `json:"index"`
	CodecType        string            `json:"codec_type"`
	CodecName        string            `json:"codec_name"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	BitsPerRawSample string            `json:"bits_per_raw_sample"`
	PixFmt           string            `json:"pix_fmt"`
	ColorTransfer    string            `json:"color_transfer"`
	Channels         int               `json:"channels"`
	Tags             map[string]string `json:"tags"`
	Disposition      map[string]int    `json:"disposition"`
	SideDataList     []sideData        `json:"side_data_list"`
}

type sideData struct {
	Type string `json:"side_data_type"`
}

// isImageBasedSubtitleCodec delegates to config so probe.go and the rest
// of the module share one fixed set of image-based subtitle codecs
// (spec.md §4.5).
func isImageBasedSubtitleCodec(codec string) bool { return config.IsImageBasedSubtitleCodec(codec) }

// Probe runs the probe binary against path and returns the structured
// result. Unknown codec_type entries are ignored, per spec.md §4.5.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.ProbePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", model.ErrSubprocessSpawnFailed, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%w: %v", model.ErrSubprocessSpawnFailed, err)
	}

	var doc probeDoc
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueSerializationFailed, err)
	}

	info := &MediaInfo{
		Container: ContainerInfo{Format: doc.Format.FormatName},
	}
	if doc.Format.Size != "" {
		info.Container.Size, _ = strconv.ParseInt(doc.Format.Size, 10, 64)
	}
	if doc.Format.BitRate != "" {
		info.Container.Bitrate, _ = strconv.ParseInt(doc.Format.BitRate, 10, 64)
	}
	if doc.Format.Duration != "" {
		secs, _ := strconv.ParseFloat(doc.Format.Duration, 64)
		info.Container.Duration = time.Duration(secs * float64(time.Second))
	}

	for i := range doc.Streams {
		s := &doc.Streams[i]
		disp := parseDisposition(s.Disposition, s.Tags)
		switch s.CodecType {
		case "video":
			bitDepth := 0
			if s.BitsPerRawSample != "" {
				bitDepth, _ = strconv.Atoi(s.BitsPerRawSample)
			}
			if bitDepth == 0 {
				bitDepth = inferBitDepth(s.PixFmt)
			}
			info.Video = append(info.Video, VideoStream{
				Index:       s.Index,
				Codec:       s.CodecName,
				Width:       s.Width,
				Height:      s.Height,
				BitDepth:    bitDepth,
				HDR:         classifyHDR(s.ColorTransfer, s.SideDataList),
				Disposition: disp,
			})
		case "audio":
			info.Audio = append(info.Audio, AudioStream{
				Index:       s.Index,
				Codec:       s.CodecName,
				Language:    strings.ToLower(s.Tags["language"]),
				Title:       s.Tags["title"],
				Channels:    s.Channels,
				Disposition: disp,
			})
		case "subtitle":
			info.Subtitle = append(info.Subtitle, SubtitleStream{
				Index:       s.Index,
				Codec:       s.CodecName,
				Language:    strings.ToLower(s.Tags["language"]),
				Title:       s.Tags["title"],
				ImageBased:  isImageBasedSubtitleCodec(s.CodecName),
				Disposition: disp,
			})
		default:
			// unknown codec types are ignored
		}
	}

	return info, nil
}

func parseDisposition(d map[string]int, tags map[string]string) Disposition {
	title := strings.ToLower(tags["title"])
	return Disposition{
		Default:         d["default"] == 1,
		Forced:          d["forced"] == 1,
		Commentary:      d["comment"] == 1 || strings.Contains(title, "commentary"),
		VisualImpaired:  d["visual_impaired"] == 1,
		HearingImpaired: d["hearing_impaired"] == 1,
	}
}

// classifyHDR applies spec.md §4.5's classification: smpte2084 -> HDR10,
// arib-std-b67 -> HLG, any side-data type containing "Dolby Vision" ->
// Dolby Vision, else none.
func classifyHDR(colorTransfer string, sideData []sideData) HDRFormat {
	for _, sd := range sideData {
		if strings.Contains(sd.Type, "Dolby Vision") {
			return DolbyVision
		}
	}
	switch strings.ToLower(colorTransfer) {
	case "smpte2084":
		return HDR10
	case "arib-std-b67":
		return HLG
	}
	return HDRNone
}

func inferBitDepth(pixFmt string) int {
	if pixFmt == "" {
		return 8
	}
	if strings.Contains(pixFmt, "10le") || strings.Contains(pixFmt, "10be") || strings.Contains(pixFmt, "p010") {
		return 10
	}
	if strings.Contains(pixFmt, "12le") || strings.Contains(pixFmt, "12be") {
		return 12
	}
	return 8
}
