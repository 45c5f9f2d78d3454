package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			GRPC:          "127.0.0.1:50061",
			Provider:      "deepgram",
			DialTimeoutMS: 3000,
			CallTimeoutMS: 10000,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Session: SessionConfig{
			UserID:    "local",
			Languages: []string{"en"},
		},
		Vocab: VocabConfig{
			Sets:        map[string]VocabSet{},
			MaxKeywords: 100,
		},
		Hooks: HooksConfig{
			TimeoutMS: 5000,
			App:       "listend",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "listend-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
