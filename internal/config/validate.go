package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Backend.GRPC) == "" {
		return nil, fmt.Errorf("backend.grpc must not be empty")
	}
	if cfg.Backend.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.dial_timeout_ms must be > 0")
	}
	if cfg.Backend.CallTimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.call_timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.Session.UserID) == "" {
		return nil, fmt.Errorf("session.user_id must not be empty")
	}
	if len(cfg.Session.Languages) == 0 {
		warnings = append(warnings, Warning{Message: "session.languages is empty; the backend default language applies"})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Hooks.TimeoutMS <= 0 {
		return nil, fmt.Errorf("hooks.timeout_ms must be > 0")
	}
	if cfg.Hooks.BeforeListening.Raw != "" && len(cfg.Hooks.BeforeListening.Argv) == 0 {
		return nil, fmt.Errorf("hooks.before_listening is configured but empty")
	}
	if cfg.Hooks.AfterListening.Raw != "" && len(cfg.Hooks.AfterListening.Argv) == 0 {
		return nil, fmt.Errorf("hooks.after_listening is configured but empty")
	}
	if cfg.Vocab.MaxKeywords <= 0 {
		return nil, fmt.Errorf("vocab.max_keywords must be > 0")
	}

	_, vocabWarnings, err := BuildKeywords(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildKeywords merges session.keywords with enabled vocab sets into the
// deterministic keyword list sent to the backend. Boosted entries use the
// provider's "keyword:boost" form.
func BuildKeywords(cfg Config) ([]string, []Warning, error) {
	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, keyword := range cfg.Session.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		selected[keyword] = candidate{from: "session.keywords"}
	}

	for _, name := range cfg.Vocab.GlobalSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, keyword := range set.Keywords {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			if existing, exists := selected[keyword]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("keyword %q present in %q and %q; using higher boost %.2f", keyword, existing.from, name, set.Boost)})
					selected[keyword] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[keyword] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxKeywords {
		return nil, nil, fmt.Errorf("keyword count %d exceeds vocab.max_keywords=%d", len(selected), cfg.Vocab.MaxKeywords)
	}

	names := make([]string, 0, len(selected))
	for keyword := range selected {
		names = append(names, keyword)
	}
	sort.Strings(names)

	keywords := make([]string, 0, len(names))
	for _, keyword := range names {
		if boost := selected[keyword].boost; boost != 0 {
			keyword += ":" + strconv.FormatFloat(boost, 'f', -1, 64)
		}
		keywords = append(keywords, keyword)
	}
	return keywords, warnings, nil
}
