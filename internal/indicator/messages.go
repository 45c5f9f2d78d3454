package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeGerman  locale = "de"
	localeFrench  locale = "fr"
	localeSpanish locale = "es"
)

type messages struct {
	recording  string
	finalizing string
	errorText  string
}

var catalog = map[locale]messages{
	localeEnglish: {recording: "Listening…", finalizing: "Finalizing transcript…", errorText: "Speech recognition error"},
	localeGerman:  {recording: "Hört zu…", finalizing: "Transkript wird abgeschlossen…", errorText: "Fehler bei der Spracherkennung"},
	localeFrench:  {recording: "Écoute…", finalizing: "Finalisation de la transcription…", errorText: "Erreur de reconnaissance vocale"},
	localeSpanish: {recording: "Escuchando…", finalizing: "Finalizando la transcripción…", errorText: "Error de reconocimiento de voz"},
}

// indicatorMessagesFromEnv follows POSIX precedence: LC_ALL, then LC_MESSAGES, then LANG.
func indicatorMessagesFromEnv() messages {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return indicatorMessages(resolveLocale(v))
		}
	}
	return indicatorMessages(localeEnglish)
}

// resolveLocale maps a value such as de_DE.UTF-8 to a catalog entry.
func resolveLocale(raw string) locale {
	tag, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ".")
	lang, _, _ := strings.Cut(tag, "_")
	lang, _, _ = strings.Cut(lang, "-")
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	if m, ok := catalog[tag]; ok {
		return m
	}
	return catalog[localeEnglish]
}
