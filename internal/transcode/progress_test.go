package transcode

import (
	"strings"
	"testing"

	"github.com/gwlsn/pipeline/internal/media"
)

func TestParseProgressLine(t *testing.T) {
	p, ok := parseProgressLine("chunk 4/10 frame=1200 speed=1.5x eta=00:01:30 42.5%")
	if !ok {
		t.Fatal("expected a parse")
	}
	if p.Percent == nil || *p.Percent != 42.5 {
		t.Errorf("percent = %v", p.Percent)
	}
	if p.Speed == nil || *p.Speed != 1.5 {
		t.Errorf("speed = %v", p.Speed)
	}
	if p.Frame == nil || *p.Frame != 1200 {
		t.Errorf("frame = %v", p.Frame)
	}
}

func TestParseProgressLineUnparseable(t *testing.T) {
	_, ok := parseProgressLine("some unrelated log line with no metrics")
	if ok {
		t.Error("expected no parse for unrelated line")
	}
}

func TestStreamProgressNonBlocking(t *testing.T) {
	r := strings.NewReader("frame=1 50.0%\nnoise\nframe=2 75.0%\n")
	ch := make(chan Progress) // unbuffered — sends must not block the reader
	tail := streamProgress(r, ch)
	if tail == "" {
		t.Error("expected non-empty stderr tail")
	}
}

func TestBuildAudioArgsDownmix(t *testing.T) {
	decisions := []media.AudioDecision{
		{SourceIndex: 1, Action: media.AudioPassthroughDownmix, DownmixCodec: "aac", DownmixBitrate: "160k"},
		{SourceIndex: 2, Action: media.AudioExclude},
		{SourceIndex: 3, Action: media.AudioPassthrough},
	}
	args := BuildAudioArgs(decisions)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "0:1") || !strings.Contains(joined, "aac") || !strings.Contains(joined, "160k") {
		t.Errorf("expected downmix args present: %s", joined)
	}
	if strings.Contains(joined, "0:2") {
		t.Errorf("excluded stream should not be mapped: %s", joined)
	}
	if !strings.Contains(joined, "0:3") {
		t.Errorf("expected passthrough stream mapped: %s", joined)
	}
}
