// Package config defines the two-tier (global + profiles) YAML
// configuration schema and its validation and hot-reload support.
package config

// Encoder is a closed sum type for the supported video encoders.
type Encoder string

const (
	EncoderX265    Encoder = "x265"
	EncoderX264    Encoder = "x264"
	EncoderSvtAv1  Encoder = "svt-av1"
	EncoderAomenc  Encoder = "aomenc"
	EncoderRav1e   Encoder = "rav1e"
)

func (e Encoder) Valid() bool {
	switch e {
	case EncoderX265, EncoderX264, EncoderSvtAv1, EncoderAomenc, EncoderRav1e:
		return true
	}
	return false
}

// OutputStructure controls whether the source directory layout is mirrored
// under the profile's output path.
type OutputStructure string

const (
	StructureMirror OutputStructure = "mirror"
	StructureFlat   OutputStructure = "flat"
)

func (s OutputStructure) Valid() bool {
	return s == StructureMirror || s == StructureFlat
}

// FilenameMode controls how the output filename is derived.
type FilenameMode string

const (
	FilenamePreserve FilenameMode = "preserve"
	FilenameTemplate FilenameMode = "template"
)

func (m FilenameMode) Valid() bool {
	return m == FilenamePreserve || m == FilenameTemplate
}

// TrackFallback controls behavior when no rule/track-config matches.
type TrackFallback string

const (
	FallbackExclude     TrackFallback = "exclude"
	FallbackInclude     TrackFallback = "include"
	FallbackPassthrough TrackFallback = "passthrough"
)

func (f TrackFallback) Valid() bool {
	switch f {
	case FallbackExclude, FallbackInclude, FallbackPassthrough:
		return true
	}
	return false
}

// OutputOrder controls the ordering of emitted tracks.
type OutputOrder string

const (
	OrderPreserve           OutputOrder = "preserve"
	OrderByLanguagePriority OutputOrder = "by_language_priority"
)

func (o OutputOrder) Valid() bool {
	return o == OrderPreserve || o == OrderByLanguagePriority
}

// AudioAction is the tagged action a matched audio rule produces.
type AudioAction string

const (
	ActionPassthrough          AudioAction = "passthrough"
	ActionTranscode            AudioAction = "transcode"
	ActionPassthroughOrTranscode AudioAction = "passthrough_or_transcode"
	ActionPassthroughLossless  AudioAction = "passthrough_lossless"
	ActionExclude              AudioAction = "exclude"
)

func (a AudioAction) Valid() bool {
	switch a {
	case ActionPassthrough, ActionTranscode, ActionPassthroughOrTranscode, ActionPassthroughLossless, ActionExclude:
		return true
	}
	return false
}

// DownmixMode controls whether/how a stereo downmix track is added.
type DownmixMode string

const (
	DownmixNone      DownmixMode = "none"
	DownmixReplace   DownmixMode = "replace"
	DownmixAddStereo DownmixMode = "add_stereo"
)

func (m DownmixMode) Valid() bool {
	switch m {
	case DownmixNone, DownmixReplace, DownmixAddStereo:
		return true
	}
	return false
}

// ImageSubsMode resolves image-based subtitle handling when no per-track
// override applies.
type ImageSubsMode string

const (
	ImageSubsCopy    ImageSubsMode = "copy"
	ImageSubsBurnIn  ImageSubsMode = "burn_in"
	ImageSubsExclude ImageSubsMode = "exclude"
)

func (m ImageSubsMode) Valid() bool {
	switch m {
	case ImageSubsCopy, ImageSubsBurnIn, ImageSubsExclude:
		return true
	}
	return false
}

// TrackFlags are the tri-state disposition match fields: nil = "don't care".
type TrackFlags struct {
	Commentary      *bool `yaml:"commentary,omitempty"`
	VisualImpaired  *bool `yaml:"visual_impaired,omitempty"`
	Default         *bool `yaml:"default,omitempty"`
}

// AudioMatchCriteria selects which streams a rule applies to. Every
// present field must match (absence = match-any for that dimension).
type AudioMatchCriteria struct {
	Language      string      `yaml:"language,omitempty"`
	Languages     []string    `yaml:"languages,omitempty"`
	Codec         string      `yaml:"codec,omitempty"`
	Codecs        []string    `yaml:"codecs,omitempty"`
	ChannelsMin   *int        `yaml:"channels_min,omitempty"`
	ChannelsMax   *int        `yaml:"channels_max,omitempty"`
	Flags         *TrackFlags `yaml:"flags,omitempty"`
	TitleContains string      `yaml:"title_contains,omitempty"`
	Index         *int        `yaml:"index,omitempty"`
}

// TranscodeSettings parameterize a transcode action.
type TranscodeSettings struct {
	Codec           string `yaml:"codec"`
	Bitrate         string `yaml:"bitrate,omitempty"`
	LosslessBitrate string `yaml:"lossless_bitrate,omitempty"`
}

// DownmixSettings describe the optional stereo downmix overlay.
type DownmixSettings struct {
	Mode    DownmixMode `yaml:"mode"`
	Codec   string      `yaml:"codec,omitempty"`
	Bitrate string      `yaml:"bitrate,omitempty"`
}

// AudioRule is one ordered entry in a profile's audio rule list.
// PassthroughCodecs lives on the rule itself, not under Transcode: a
// passthrough_or_transcode rule may list passthrough codecs with no
// transcode block at all (it only needs one when a non-passthrough codec
// is seen).
type AudioRule struct {
	Match             AudioMatchCriteria `yaml:"match"`
	Action            AudioAction        `yaml:"action"`
	PassthroughCodecs []string           `yaml:"passthrough_codecs,omitempty"`
	Transcode         *TranscodeSettings `yaml:"transcode,omitempty"`
	Downmix           *DownmixSettings   `yaml:"downmix,omitempty"`
}

// AudioConfig is a profile's audio track-decision policy.
type AudioConfig struct {
	Rules                []AudioRule   `yaml:"rules"`
	Fallback             TrackFallback `yaml:"fallback"`
	MaxTracksPerLanguage *int          `yaml:"max_tracks_per_language,omitempty"`
	OutputOrder          OutputOrder   `yaml:"output_order"`
	LanguagePriority     []string      `yaml:"language_priority,omitempty"`
}

// SubtitleTrackConfig is one ordered per-language entry in a profile's
// subtitle config.
type SubtitleTrackConfig struct {
	Language      string `yaml:"language"`
	IncludeForced bool   `yaml:"include_forced"`
	IncludeSDH    bool   `yaml:"include_sdh"`
	IncludeFull   bool   `yaml:"include_full"`
	BurnIn        bool   `yaml:"burn_in"`
}

// SubtitleConfig is a profile's subtitle track-decision policy.
type SubtitleConfig struct {
	Tracks     []SubtitleTrackConfig `yaml:"tracks"`
	ImageSubs  ImageSubsMode         `yaml:"image_subs"`
	Fallback   TrackFallback         `yaml:"fallback"`
}

// Profile is one encode policy a watched directory is assigned.
type Profile struct {
	Name            string          `yaml:"name"`
	InputPath       string          `yaml:"input_path"`
	OutputPath      string          `yaml:"output_path"`
	Recursive       bool            `yaml:"recursive"`
	FilePatterns    []string        `yaml:"file_patterns"`
	Encoder         Encoder         `yaml:"encoder"`
	TargetQuality   float64         `yaml:"target_quality"`
	WorkerCountHint int             `yaml:"worker_count_hint"`
	Audio           AudioConfig     `yaml:"audio"`
	Subtitles       SubtitleConfig  `yaml:"subtitles"`
	OutputStructure OutputStructure `yaml:"output_structure"`
	FilenameMode    FilenameMode    `yaml:"filename_mode"`
	FilenameSuffix  string          `yaml:"filename_suffix,omitempty"`
}

// RedisConfig addresses the job queue's backing store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// StabilityConfig tunes the write-completion detector.
type StabilityConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	StabilityDuration Duration `yaml:"stability_duration"`
}

// RetryConfig tunes worker retry/dead-letter behavior.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// PrometheusConfig addresses the metrics HTTP endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DiscordEvents toggles which event types produce a webhook notification.
type DiscordEvents struct {
	EncodeSuccess bool `yaml:"encode_success"`
	EncodeFailure bool `yaml:"encode_failure"`
	DeadLetter    bool `yaml:"dead_letter"`
	QueueEmpty    bool `yaml:"queue_empty"`
}

// DiscordConfig addresses the webhook notification sink.
type DiscordConfig struct {
	WebhookURL       string        `yaml:"webhook_url,omitempty"`
	Events           DiscordEvents `yaml:"events"`
	MentionOnFailure string        `yaml:"mention_on_failure,omitempty"`
}

// NotificationConfig wraps the notification sinks a deployment may enable.
type NotificationConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// GlobalConfig holds settings shared across all profiles.
type GlobalConfig struct {
	Redis         RedisConfig         `yaml:"redis"`
	Stability     StabilityConfig     `yaml:"stability"`
	Retry         RetryConfig         `yaml:"retry"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
	Notifications NotificationConfig  `yaml:"notifications"`
	ProbePath     string              `yaml:"probe_path"`
	EncoderPath   string              `yaml:"encoder_path"`
	TempDir       string              `yaml:"temp_dir,omitempty"`
	IdleSleep     Duration            `yaml:"idle_sleep"`
	ErrorSleep    Duration            `yaml:"error_sleep"`
	LogLevel      string              `yaml:"log_level"`
	AuditDBPath   string              `yaml:"audit_db_path,omitempty"`
}

// Config is the top-level on-disk document.
type Config struct {
	Global   GlobalConfig `yaml:"global"`
	Profiles []Profile    `yaml:"profiles"`
}

// LosslessAudioCodecs is the fixed set spec.md §4.4 defines as lossless.
var LosslessAudioCodecs = map[string]bool{
	"truehd":      true,
	"mlp":         true,
	"dts-hd ma":   true,
	"dtshd":       true,
	"flac":        true,
	"alac":        true,
	"pcm_s16le":   true,
	"pcm_s24le":   true,
	"pcm_s32le":   true,
}

// IsLosslessCodec reports whether codec (case-insensitive) is in the
// lossless set.
func IsLosslessCodec(codec string) bool {
	return LosslessAudioCodecs[normalizeCodec(codec)]
}

func normalizeCodec(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// ImageBasedSubtitleCodecs is the fixed set spec.md §4.5 defines as
// image-based.
var ImageBasedSubtitleCodecs = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"dvd_subtitle":      true,
	"dvb_subtitle":      true,
}

func IsImageBasedSubtitleCodec(codec string) bool {
	return ImageBasedSubtitleCodecs[normalizeCodec(codec)]
}
