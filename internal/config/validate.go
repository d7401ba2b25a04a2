package config

import (
	"fmt"

	"github.com/gwlsn/pipeline/internal/model"
)

// FieldError names a single invalid configuration field.
type FieldError struct {
	Path       string
	Message    string
	Suggestion string
}

// ConfigValidationError carries every field error found by Validate.
type ConfigValidationError struct {
	Errors []FieldError
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("%s: %d error(s)", model.ErrConfigValidationFailed, len(e.Errors))
}

func (e *ConfigValidationError) Unwrap() error { return model.ErrConfigValidationFailed }

// Validate checks the config and returns a ConfigValidationError listing
// every field problem found (spec.md §7: "a formatted report with error
// paths, messages, and suggestions").
func (c *Config) Validate() error {
	var errs []FieldError

	if c.Global.Redis.Addr == "" {
		errs = append(errs, FieldError{
			Path: "global.redis.addr", Message: "must not be empty",
			Suggestion: `set to "host:port", e.g. "127.0.0.1:6379"`,
		})
	}
	if c.Global.Retry.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Path: "global.retry.max_attempts", Message: "must be >= 1",
			Suggestion: "set to a positive integer, e.g. 3",
		})
	}
	if c.Global.Stability.StabilityDuration.AsDuration() <= 0 {
		errs = append(errs, FieldError{
			Path: "global.stability.stability_duration", Message: "must be > 0",
			Suggestion: `set to a duration string, e.g. "30s"`,
		})
	}

	if len(c.Profiles) == 0 {
		errs = append(errs, FieldError{
			Path: "profiles", Message: "must contain at least one profile",
			Suggestion: "add a profile with input_path/output_path",
		})
	}

	seen := map[string]bool{}
	for i := range c.Profiles {
		errs = append(errs, validateProfile(i, &c.Profiles[i])...)
		name := c.Profiles[i].Name
		if name != "" {
			if seen[name] {
				errs = append(errs, FieldError{
					Path: fmt.Sprintf("profiles[%d].name", i), Message: "duplicate profile name",
					Suggestion: "give each profile a unique name",
				})
			}
			seen[name] = true
		}
	}

	if len(errs) > 0 {
		return &ConfigValidationError{Errors: errs}
	}
	return nil
}

func validateProfile(i int, p *Profile) []FieldError {
	var errs []FieldError
	path := func(suffix string) string { return fmt.Sprintf("profiles[%d].%s", i, suffix) }

	if p.Name == "" {
		errs = append(errs, FieldError{Path: path("name"), Message: "must not be empty",
			Suggestion: "give the profile a unique, descriptive name"})
	}
	if p.InputPath == "" {
		errs = append(errs, FieldError{Path: path("input_path"), Message: "must not be empty",
			Suggestion: "set the directory to watch"})
	}
	if p.OutputPath == "" {
		errs = append(errs, FieldError{Path: path("output_path"), Message: "must not be empty",
			Suggestion: "set the directory to write encoded output to"})
	}
	if !p.Encoder.Valid() {
		errs = append(errs, FieldError{Path: path("encoder"), Message: fmt.Sprintf("unknown encoder %q", p.Encoder),
			Suggestion: "use one of: x265, x264, svt-av1, aomenc, rav1e"})
	}
	if p.TargetQuality < 0 || p.TargetQuality > 100 {
		errs = append(errs, FieldError{Path: path("target_quality"), Message: "must be in [0, 100]",
			Suggestion: "VMAF target quality is a percentage-like score between 0 and 100"})
	}
	if !p.OutputStructure.Valid() {
		errs = append(errs, FieldError{Path: path("output_structure"), Message: fmt.Sprintf("unknown value %q", p.OutputStructure),
			Suggestion: "use one of: mirror, flat"})
	}
	if !p.FilenameMode.Valid() {
		errs = append(errs, FieldError{Path: path("filename_mode"), Message: fmt.Sprintf("unknown value %q", p.FilenameMode),
			Suggestion: "use one of: preserve, template"})
	}
	if !p.Audio.Fallback.Valid() {
		errs = append(errs, FieldError{Path: path("audio.fallback"), Message: fmt.Sprintf("unknown value %q", p.Audio.Fallback),
			Suggestion: "use one of: exclude, include, passthrough"})
	}
	if !p.Audio.OutputOrder.Valid() {
		errs = append(errs, FieldError{Path: path("audio.output_order"), Message: fmt.Sprintf("unknown value %q", p.Audio.OutputOrder),
			Suggestion: "use one of: preserve, by_language_priority"})
	}
	if p.Audio.MaxTracksPerLanguage != nil && *p.Audio.MaxTracksPerLanguage < 0 {
		errs = append(errs, FieldError{Path: path("audio.max_tracks_per_language"), Message: "must be >= 0",
			Suggestion: "remove the field to disable the cap, or set a non-negative integer"})
	}
	for ri, rule := range p.Audio.Rules {
		if !rule.Action.Valid() {
			errs = append(errs, FieldError{Path: path(fmt.Sprintf("audio.rules[%d].action", ri)), Message: fmt.Sprintf("unknown value %q", rule.Action),
				Suggestion: "use one of: passthrough, transcode, passthrough_or_transcode, passthrough_lossless, exclude"})
		}
		if rule.Downmix != nil && !rule.Downmix.Mode.Valid() {
			errs = append(errs, FieldError{Path: path(fmt.Sprintf("audio.rules[%d].downmix.mode", ri)), Message: fmt.Sprintf("unknown value %q", rule.Downmix.Mode),
				Suggestion: "use one of: none, replace, add_stereo"})
		}
	}
	if !p.Subtitles.ImageSubs.Valid() {
		errs = append(errs, FieldError{Path: path("subtitles.image_subs"), Message: fmt.Sprintf("unknown value %q", p.Subtitles.ImageSubs),
			Suggestion: "use one of: copy, burn_in, exclude"})
	}
	if !p.Subtitles.Fallback.Valid() {
		errs = append(errs, FieldError{Path: path("subtitles.fallback"), Message: fmt.Sprintf("unknown value %q", p.Subtitles.Fallback),
			Suggestion: "use one of: exclude, include, passthrough"})
	}
	return errs
}

// Report renders a ConfigValidationError as the multi-line user-visible
// text spec.md §7 requires: one line per field error with path, message,
// and suggestion.
func Report(err *ConfigValidationError) string {
	out := ""
	for _, e := range err.Errors {
		out += fmt.Sprintf("- %s: %s (suggestion: %s)\n", e.Path, e.Message, e.Suggestion)
	}
	return out
}
