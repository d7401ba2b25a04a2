package media

import (
	"strings"

	"github.com/gwlsn/pipeline/internal/config"
)

// DecideSubtitles is the pure function (streams, SubtitleConfig) ->
// decisions defined in spec.md §4.4. It does not itself enforce "at most
// one burn_in"; that worker-level downgrade is DowngradeExtraBurnIns.
func DecideSubtitles(streams []SubtitleStream, cfg config.SubtitleConfig) []SubtitleDecision {
	decisions := make([]SubtitleDecision, len(streams))

	for i, stream := range streams {
		idx, track, matched := findSubtitleTrack(stream, cfg.Tracks)
		var d SubtitleDecision
		d.SourceIndex = stream.Index

		if matched {
			ri := idx
			d.MatchedRule = &ri
			d.Action = decideMatchedSubtitle(stream, track, cfg.ImageSubs)
		} else {
			d.Action = applySubtitleFallback(stream, cfg.Fallback, cfg.ImageSubs)
		}
		decisions[i] = d
	}

	return decisions
}

func findSubtitleTrack(stream SubtitleStream, tracks []config.SubtitleTrackConfig) (int, config.SubtitleTrackConfig, bool) {
	for i, t := range tracks {
		if strings.EqualFold(t.Language, stream.Language) {
			return i, t, true
		}
	}
	return -1, config.SubtitleTrackConfig{}, false
}

func decideMatchedSubtitle(stream SubtitleStream, track config.SubtitleTrackConfig, imageSubs config.ImageSubsMode) SubtitleActionKind {
	if !shouldIncludeTrack(stream, track) {
		return SubtitleExclude
	}
	if track.BurnIn && stream.ImageBased {
		return SubtitleBurnIn
	}
	if stream.ImageBased {
		return resolveImageSubsMode(imageSubs)
	}
	return SubtitleCopy
}

// shouldIncludeTrack mirrors should_include_track: forced wins over
// hearing-impaired, which wins over the regular full-subtitle toggle — a
// track is never checked against more than one of these three flags.
func shouldIncludeTrack(stream SubtitleStream, track config.SubtitleTrackConfig) bool {
	if stream.Disposition.Forced {
		return track.IncludeForced
	}
	if stream.Disposition.HearingImpaired {
		return track.IncludeSDH
	}
	return track.IncludeFull
}

func resolveImageSubsMode(mode config.ImageSubsMode) SubtitleActionKind {
	switch mode {
	case config.ImageSubsBurnIn:
		return SubtitleBurnIn
	case config.ImageSubsExclude:
		return SubtitleExclude
	default:
		return SubtitleCopy
	}
}

func applySubtitleFallback(stream SubtitleStream, fallback config.TrackFallback, imageSubs config.ImageSubsMode) SubtitleActionKind {
	if fallback == config.FallbackExclude {
		return SubtitleExclude
	}
	// include or passthrough: copy path with image-subs override
	if stream.ImageBased {
		return resolveImageSubsMode(imageSubs)
	}
	return SubtitleCopy
}

// DowngradeExtraBurnIns enforces "at most one burn_in decision should be
// consumed by the downstream pipeline (first in order wins); additional
// burn-ins are downgraded to copy" — applied by the worker, not the
// decision engine itself (spec.md §4.4).
func DowngradeExtraBurnIns(decisions []SubtitleDecision) []SubtitleDecision {
	seen := false
	out := make([]SubtitleDecision, len(decisions))
	for i, d := range decisions {
		if d.Action == SubtitleBurnIn {
			if seen {
				d.Action = SubtitleCopy
			} else {
				seen = true
			}
		}
		out[i] = d
	}
	return out
}
