package media

import (
	"strings"

	"github.com/gwlsn/pipeline/internal/config"
)

// DecideAudio is the pure function (streams, AudioConfig) -> decisions
// defined in spec.md §4.4. Running it twice on the same input produces
// byte-identical output.
func DecideAudio(streams []AudioStream, cfg config.AudioConfig) []AudioDecision {
	decisions := make([]AudioDecision, len(streams))
	langCount := map[string]int{}

	for i, stream := range streams {
		ruleIdx, rule, matched := findAudioRule(stream, cfg.Rules)

		var decision AudioDecision
		decision.SourceIndex = stream.Index

		if matched {
			decision = applyAudioAction(stream, rule)
			decision.SourceIndex = stream.Index
			idx := ruleIdx
			decision.MatchedRule = &idx

			if decision.Action != AudioExclude {
				if limit := cfg.MaxTracksPerLanguage; limit != nil {
					if langCount[stream.Language] >= *limit {
						decision = AudioDecision{
							SourceIndex: stream.Index,
							Action:      AudioExclude,
							MatchedRule: &idx,
						}
					} else {
						langCount[stream.Language]++
					}
				} else {
					langCount[stream.Language]++
				}
			}
		} else {
			decision = AudioDecision{
				SourceIndex: stream.Index,
				Action:      applyAudioFallback(cfg.Fallback),
			}
		}

		decisions[i] = decision
	}

	return decisions
}

func findAudioRule(stream AudioStream, rules []config.AudioRule) (int, config.AudioRule, bool) {
	for i, rule := range rules {
		if audioCriteriaMatch(stream, rule.Match) {
			return i, rule, true
		}
	}
	return -1, config.AudioRule{}, false
}

func audioCriteriaMatch(stream AudioStream, m config.AudioMatchCriteria) bool {
	if m.Language != "" && !strings.EqualFold(m.Language, stream.Language) {
		return false
	}
	if len(m.Languages) > 0 && !containsFold(m.Languages, stream.Language) {
		return false
	}
	if m.Codec != "" && !strings.EqualFold(m.Codec, stream.Codec) {
		return false
	}
	if len(m.Codecs) > 0 && !containsFold(m.Codecs, stream.Codec) {
		return false
	}
	if m.ChannelsMin != nil && stream.Channels < *m.ChannelsMin {
		return false
	}
	if m.ChannelsMax != nil && stream.Channels > *m.ChannelsMax {
		return false
	}
	if m.Flags != nil {
		if m.Flags.Commentary != nil && *m.Flags.Commentary != stream.Disposition.Commentary {
			return false
		}
		if m.Flags.VisualImpaired != nil && *m.Flags.VisualImpaired != stream.Disposition.VisualImpaired {
			return false
		}
		if m.Flags.Default != nil && *m.Flags.Default != stream.Disposition.Default {
			return false
		}
	}
	if m.TitleContains != "" {
		if stream.Title == "" {
			return false
		}
		if !strings.Contains(strings.ToLower(stream.Title), strings.ToLower(m.TitleContains)) {
			return false
		}
	}
	if m.Index != nil && *m.Index != stream.Index {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// applyAudioAction translates a matched rule's action into a base decision,
// then applies the downmix overlay.
func applyAudioAction(stream AudioStream, rule config.AudioRule) AudioDecision {
	d := AudioDecision{SourceIndex: stream.Index}

	switch rule.Action {
	case config.ActionPassthrough:
		d.Action = AudioPassthrough
	case config.ActionExclude:
		d.Action = AudioExclude
	case config.ActionTranscode:
		d.Action = AudioTranscode
		d.Codec, d.Bitrate = transcodeParams(stream, rule.Transcode)
	case config.ActionPassthroughOrTranscode:
		if containsFold(rule.PassthroughCodecs, stream.Codec) {
			d.Action = AudioPassthrough
		} else {
			d.Action = AudioTranscode
			d.Codec, d.Bitrate = transcodeParams(stream, rule.Transcode)
		}
	case config.ActionPassthroughLossless:
		if config.IsLosslessCodec(stream.Codec) {
			d.Action = AudioPassthrough
		} else if rule.Transcode != nil {
			d.Action = AudioTranscode
			d.Codec, d.Bitrate = transcodeParams(stream, rule.Transcode)
		} else {
			d.Action = AudioPassthrough
		}
	default:
		d.Action = AudioExclude
	}

	if d.Action == AudioExclude {
		return d
	}
	if rule.Downmix != nil && rule.Downmix.Mode != config.DownmixNone && stream.Channels > 2 {
		d.DownmixCodec = rule.Downmix.Codec
		d.DownmixBitrate = rule.Downmix.Bitrate
		if d.Action == AudioPassthrough {
			d.Action = AudioPassthroughDownmix
		} else {
			d.Action = AudioTranscodeDownmix
		}
	}
	return d
}

func transcodeParams(stream AudioStream, settings *config.TranscodeSettings) (codec, bitrate string) {
	if settings == nil {
		return "", ""
	}
	codec = settings.Codec
	if config.IsLosslessCodec(stream.Codec) && settings.LosslessBitrate != "" {
		return codec, settings.LosslessBitrate
	}
	return codec, settings.Bitrate
}

func applyAudioFallback(fallback config.TrackFallback) AudioActionKind {
	switch fallback {
	case config.FallbackExclude:
		return AudioExclude
	default: // include or passthrough
		return AudioPassthrough
	}
}
