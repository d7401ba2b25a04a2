// Package media holds the probe result types, the probe adapter, and the
// pure track-decision engines (audio + subtitle).
package media

import "time"

// HDRFormat is the detected HDR classification of a video stream.
type HDRFormat string

const (
	HDRNone       HDRFormat = ""
	HDR10         HDRFormat = "HDR10"
	HLG           HDRFormat = "HLG"
	DolbyVision   HDRFormat = "Dolby Vision"
)

// Disposition carries the per-track flags that match criteria can key on.
type Disposition struct {
	Default         bool
	Forced          bool
	Commentary      bool
	VisualImpaired  bool
	HearingImpaired bool
}

// VideoStream is a probed video track.
type VideoStream struct {
	Index       int
	Codec       string
	Width       int
	Height      int
	BitDepth    int
	HDR         HDRFormat
	Disposition Disposition
}

// AudioStream is a probed audio track.
type AudioStream struct {
	Index       int
	Codec       string
	Language    string
	Title       string
	Channels    int
	Disposition Disposition
}

// SubtitleStream is a probed subtitle track.
type SubtitleStream struct {
	Index       int
	Codec       string
	Language    string
	Title       string
	ImageBased  bool
	Disposition Disposition
}

// ContainerInfo is the format-level probe result.
type ContainerInfo struct {
	Format   string
	Duration time.Duration
	Size     int64
	Bitrate  int64
}

// MediaInfo is the full structured probe result for one file: container
// info plus the three ordered stream sequences (spec.md §3).
type MediaInfo struct {
	Container ContainerInfo
	Video     []VideoStream
	Audio     []AudioStream
	Subtitle  []SubtitleStream
}
