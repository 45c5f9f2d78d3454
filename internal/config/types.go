// Package config resolves, parses, validates, and defaults listend configuration.
package config

// Config is the fully materialized runtime configuration used by listend.
type Config struct {
	Backend   BackendConfig
	Store     StoreConfig
	Audio     AudioConfig
	Session   SessionConfig
	Vocab     VocabConfig
	Hooks     HooksConfig
	Indicator IndicatorConfig
	Debug     DebugConfig
}

// BackendConfig locates the recognition backend.
type BackendConfig struct {
	GRPC          string
	Provider      string
	DialTimeoutMS int
	CallTimeoutMS int
}

// StoreConfig locates the transcript database and per-session resources.
// Empty values resolve under the XDG data directory at load time.
type StoreConfig struct {
	Path    string
	DataDir string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// SessionConfig holds the parameters sent with every start and batch request.
type SessionConfig struct {
	UserID        string
	Languages     []string
	Model         string
	Keywords      []string
	RecordEnabled bool
}

// VocabConfig controls named keyword sets merged into session keywords.
type VocabConfig struct {
	GlobalSets  []string
	Sets        map[string]VocabSet
	MaxKeywords int
}

// VocabSet is one named keyword group with a shared boost value.
type VocabSet struct {
	Name     string
	Boost    float64
	Keywords []string
}

// HooksConfig holds the commands run around live sessions.
type HooksConfig struct {
	BeforeListening CommandConfig
	AfterListening  CommandConfig
	TimeoutMS       int
	App             string
	AppMeeting      string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundErrorFile    string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EventDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
