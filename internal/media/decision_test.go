package media

import (
	"reflect"
	"testing"

	"github.com/gwlsn/pipeline/internal/config"
)

func intp(v int) *int { return &v }
func boolp(v bool) *bool { return &v }

func TestDecideAudioScenario(t *testing.T) {
	// spec.md §8 scenario 4.
	streams := []AudioStream{
		{Index: 1, Codec: "truehd", Language: "eng", Channels: 6},
		{Index: 2, Codec: "ac3", Language: "eng", Channels: 6, Disposition: Disposition{Commentary: true}},
		{Index: 3, Codec: "aac", Language: "jpn", Channels: 2},
	}
	cfg := config.AudioConfig{
		Fallback: config.FallbackExclude,
		Rules: []config.AudioRule{
			{
				Match:  config.AudioMatchCriteria{Languages: []string{"eng"}, Flags: &config.TrackFlags{Commentary: boolp(true)}},
				Action: config.ActionExclude,
			},
			{
				Match:  config.AudioMatchCriteria{Languages: []string{"eng"}},
				Action: config.ActionPassthroughLossless,
				Downmix: &config.DownmixSettings{Mode: config.DownmixAddStereo, Codec: "aac", Bitrate: "160k"},
			},
			{
				Match:  config.AudioMatchCriteria{Languages: []string{"jpn"}},
				Action: config.ActionPassthrough,
			},
		},
	}

	got := DecideAudio(streams, cfg)
	if len(got) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(got))
	}
	if got[0].Action != AudioPassthroughDownmix || got[0].DownmixCodec != "aac" || got[0].DownmixBitrate != "160k" {
		t.Errorf("stream 0: got %+v", got[0])
	}
	if got[1].Action != AudioExclude {
		t.Errorf("stream 1: got %+v, want exclude", got[1])
	}
	if got[2].Action != AudioPassthrough {
		t.Errorf("stream 2: got %+v, want passthrough", got[2])
	}
}

func TestDecideAudioPassthroughOrTranscodeWithNoTranscodeBlock(t *testing.T) {
	streams := []AudioStream{{Index: 0, Codec: "aac", Language: "eng", Channels: 2}}
	cfg := config.AudioConfig{
		Rules: []config.AudioRule{
			{
				Match:             config.AudioMatchCriteria{Languages: []string{"eng"}},
				Action:            config.ActionPassthroughOrTranscode,
				PassthroughCodecs: []string{"aac", "ac3"},
			},
		},
	}
	got := DecideAudio(streams, cfg)
	if got[0].Action != AudioPassthrough {
		t.Errorf("expected passthrough for a listed codec with no transcode block, got %+v", got[0])
	}
}

func TestDecideAudioEmptyRulesExcludeFallback(t *testing.T) {
	streams := []AudioStream{{Index: 0, Codec: "aac", Language: "eng", Channels: 2}}
	cfg := config.AudioConfig{Fallback: config.FallbackExclude}
	got := DecideAudio(streams, cfg)
	if got[0].Action != AudioExclude {
		t.Errorf("expected exclude fallback, got %+v", got[0])
	}
}

func TestDecideAudioTwoChannelNeverDownmixed(t *testing.T) {
	streams := []AudioStream{{Index: 0, Codec: "aac", Language: "eng", Channels: 2}}
	cfg := config.AudioConfig{
		Fallback: config.FallbackExclude,
		Rules: []config.AudioRule{{
			Match:   config.AudioMatchCriteria{Languages: []string{"eng"}},
			Action:  config.ActionPassthrough,
			Downmix: &config.DownmixSettings{Mode: config.DownmixAddStereo, Codec: "aac", Bitrate: "160k"},
		}},
	}
	got := DecideAudio(streams, cfg)
	if got[0].Action != AudioPassthrough {
		t.Errorf("2-channel stream should never downmix, got %+v", got[0])
	}
}

func TestDecideAudioMaxTracksPerLanguage(t *testing.T) {
	streams := []AudioStream{
		{Index: 0, Codec: "aac", Language: "eng", Channels: 2},
		{Index: 1, Codec: "ac3", Language: "eng", Channels: 6},
	}
	cfg := config.AudioConfig{
		Fallback:             config.FallbackExclude,
		MaxTracksPerLanguage: intp(1),
		Rules: []config.AudioRule{{
			Match:  config.AudioMatchCriteria{Languages: []string{"eng"}},
			Action: config.ActionPassthrough,
		}},
	}
	got := DecideAudio(streams, cfg)
	nonExcluded := 0
	for _, d := range got {
		if d.Action != AudioExclude {
			nonExcluded++
		}
	}
	if nonExcluded != 1 {
		t.Errorf("expected exactly 1 non-excluded decision, got %d: %+v", nonExcluded, got)
	}
}

func TestDecideAudioPureFunction(t *testing.T) {
	streams := []AudioStream{{Index: 0, Codec: "flac", Language: "eng", Channels: 2}}
	cfg := config.AudioConfig{
		Fallback: config.FallbackPassthrough,
		Rules: []config.AudioRule{{
			Match:  config.AudioMatchCriteria{Languages: []string{"eng"}},
			Action: config.ActionPassthroughLossless,
		}},
	}
	a := DecideAudio(streams, cfg)
	b := DecideAudio(streams, cfg)
	if len(a) != len(b) || !reflect.DeepEqual(a, b) {
		t.Errorf("decision engine not idempotent: %+v vs %+v", a, b)
	}
}

func TestDecideSubtitlesBurnInAtMostOnce(t *testing.T) {
	// spec.md §8 scenario 5.
	streams := []SubtitleStream{
		{Index: 1, Language: "eng", ImageBased: true, Disposition: Disposition{Forced: true}},
		{Index: 2, Language: "eng", ImageBased: true, Disposition: Disposition{Forced: true}},
	}
	cfg := config.SubtitleConfig{
		ImageSubs: config.ImageSubsCopy,
		Tracks: []config.SubtitleTrackConfig{
			{Language: "eng", IncludeForced: true, BurnIn: true},
		},
	}
	decisions := DecideSubtitles(streams, cfg)
	decisions = DowngradeExtraBurnIns(decisions)

	if decisions[0].Action != SubtitleBurnIn {
		t.Errorf("first stream should burn in, got %+v", decisions[0])
	}
	if decisions[1].Action != SubtitleCopy {
		t.Errorf("second stream should be downgraded to copy, got %+v", decisions[1])
	}
}

func TestDecideSubtitlesForcedExcludedWithoutIncludeForced(t *testing.T) {
	streams := []SubtitleStream{{Index: 0, Language: "eng", Disposition: Disposition{Forced: true}}}
	cfg := config.SubtitleConfig{
		ImageSubs: config.ImageSubsCopy,
		Tracks:    []config.SubtitleTrackConfig{{Language: "eng", IncludeForced: false, IncludeFull: true}},
	}
	got := DecideSubtitles(streams, cfg)
	if got[0].Action != SubtitleExclude {
		t.Errorf("expected exclude, got %+v", got[0])
	}
}

func TestDecideSubtitlesForcedAndHearingImpairedForcedWins(t *testing.T) {
	streams := []SubtitleStream{{Index: 0, Language: "eng", Disposition: Disposition{Forced: true, HearingImpaired: true}}}
	cfg := config.SubtitleConfig{
		ImageSubs: config.ImageSubsCopy,
		Tracks:    []config.SubtitleTrackConfig{{Language: "eng", IncludeForced: true, IncludeSDH: false}},
	}
	got := DecideSubtitles(streams, cfg)
	if got[0].Action != SubtitleCopy {
		t.Errorf("forced+HI stream with include_forced=true should include regardless of include_sdh, got %+v", got[0])
	}
}

func TestDecideSubtitlesFallback(t *testing.T) {
	streams := []SubtitleStream{{Index: 0, Language: "fra"}}
	cfg := config.SubtitleConfig{ImageSubs: config.ImageSubsCopy, Fallback: config.FallbackExclude}
	got := DecideSubtitles(streams, cfg)
	if got[0].Action != SubtitleExclude {
		t.Errorf("expected exclude fallback, got %+v", got[0])
	}
}
