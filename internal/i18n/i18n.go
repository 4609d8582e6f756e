// Package i18n holds the static string tables for user-visible fallback
// messages. There is no translation infrastructure; lookups degrade to
// English for unknown languages.
package i18n

import "github.com/chembench/server/pkg/lab"

// LanguageName returns the English display name of a language, used to tag
// oracle prompts ("Output in Russian.").
func LanguageName(lang lab.Language) string {
	switch lang {
	case lab.LanguageRussian:
		return "Russian"
	case lab.LanguageKazakh:
		return "Kazakh"
	default:
		return "English"
	}
}

type table struct {
	AnalysisUnavailable  string
	AssistantUnreachable string
	ServiceUnavailable   string
	NoResponse           string
}

var tables = map[lab.Language]table{
	lab.LanguageEnglish: {
		AnalysisUnavailable:  "AI analysis unavailable.",
		AssistantUnreachable: "I am having trouble connecting to the lab assistant.",
		ServiceUnavailable:   "Service unavailable.",
		NoResponse:           "No response received.",
	},
	lab.LanguageRussian: {
		AnalysisUnavailable:  "ИИ-анализ недоступен.",
		AssistantUnreachable: "Не удаётся связаться с лабораторным ассистентом.",
		ServiceUnavailable:   "Сервис недоступен.",
		NoResponse:           "Ответ не получен.",
	},
	lab.LanguageKazakh: {
		AnalysisUnavailable:  "ЖИ талдауы қолжетімді емес.",
		AssistantUnreachable: "Зертханалық көмекшімен байланысу мүмкін болмады.",
		ServiceUnavailable:   "Қызмет қолжетімді емес.",
		NoResponse:           "Жауап алынбады.",
	},
}

func lookup(lang lab.Language) table {
	if t, ok := tables[lang]; ok {
		return t
	}
	return tables[lab.LanguageEnglish]
}

// AnalysisUnavailable is the fallback verdict feedback shown when layout
// judging fails.
func AnalysisUnavailable(lang lab.Language) string {
	return lookup(lang).AnalysisUnavailable
}

// AssistantUnreachable is the degraded reply for experiment chat failures.
func AssistantUnreachable(lang lab.Language) string {
	return lookup(lang).AssistantUnreachable
}

// ServiceUnavailable is the degraded reply for general chat failures.
func ServiceUnavailable(lang lab.Language) string {
	return lookup(lang).ServiceUnavailable
}

// NoResponse is shown when the oracle answered with empty text.
func NoResponse(lang lab.Language) string {
	return lookup(lang).NoResponse
}
