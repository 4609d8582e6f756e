// Package lab defines the domain types for the virtual chemistry workbench:
// experiments, canvas placements, verdicts and chat transcripts. These are
// plain value types with no infrastructure dependencies; they are what the
// HTTP API serves and what the oracle client produces.
package lab

// Language is a supported content language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageRussian Language = "ru"
	LanguageKazakh  Language = "kk"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageRussian, LanguageKazakh:
		return true
	}
	return false
}

// Role selects the audience an experiment guide is written for.
// It also selects the oracle model tier.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}
