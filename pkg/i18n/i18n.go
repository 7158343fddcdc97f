// Package i18n localises user-facing error messages by error code.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var supported = []language.Tag{language.Spanish, language.English}

var messages = map[string]map[language.Tag]string{
	"NOT_FOUND": {
		language.Spanish: "Recurso no encontrado",
		language.English: "Resource not found",
	},
	"FORBIDDEN": {
		language.Spanish: "Operación no permitida",
		language.English: "Operation not allowed",
	},
	"UNAUTHORIZED": {
		language.Spanish: "Autenticación requerida",
		language.English: "Authentication required",
	},
	"VALIDATION_ERROR": {
		language.Spanish: "Datos inválidos",
		language.English: "Invalid data",
	},
	"INTERNAL_ERROR": {
		language.Spanish: "Error interno del servidor",
		language.English: "Internal server error",
	},
	"INTEGRITY_ERROR": {
		language.Spanish: "Error de integridad; la operación fue revertida",
		language.English: "Integrity error; the operation was rolled back",
	},
	"SESSION_BUSY": {
		language.Spanish: "La sesión está ocupada, intente nuevamente",
		language.English: "Session is busy, retry later",
	},
	"NOVELTY_REQUIRED": {
		language.Spanish: "Debe registrar el tipo de novedad para cerrar una clase sin asistencia",
		language.English: "A novelty type is required to close a session without attendance",
	},
	"NOVELTY_ATTACHMENT_MISSING": {
		language.Spanish: "La novedad de material requiere al menos un adjunto",
		language.English: "Material novelties require at least one attachment",
	},
	"NOT_ELIGIBLE": {
		language.Spanish: "El estudiante no ha cumplido los prerrequisitos",
		language.English: "Student has not completed the prerequisites",
	},
	"SESSION_NOT_APPLICABLE": {
		language.Spanish: "La clase no aplica para el estudiante",
		language.English: "Session is not applicable to the student",
	},
	"OUTSIDE_AUDIENCE": {
		language.Spanish: "La unidad actual del estudiante está fuera del rango de la clase",
		language.English: "Student unit is outside the session audience",
	},
	"INVALID_TRANSITION": {
		language.Spanish: "Transición de estado no permitida",
		language.English: "State transition not allowed",
	},
}

// Translator resolves localized messages for error codes.
type Translator struct {
	catalog  *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
	known    map[string]struct{}
}

// New builds a translator defaulting to the provided locale (es when empty or unknown).
func New(defaultLocale string) *Translator {
	fallback := language.Spanish
	if tag, err := language.Parse(defaultLocale); err == nil {
		for _, s := range supported {
			if base, _ := tag.Base(); base == mustBase(s) {
				fallback = s
			}
		}
	}

	b := catalog.NewBuilder(catalog.Fallback(fallback))
	known := make(map[string]struct{}, len(messages))
	for code, byLang := range messages {
		for tag, msg := range byLang {
			_ = b.SetString(tag, code, msg)
		}
		known[code] = struct{}{}
	}

	ordered := []language.Tag{fallback}
	for _, s := range supported {
		if s != fallback {
			ordered = append(ordered, s)
		}
	}

	return &Translator{catalog: b, matcher: language.NewMatcher(ordered), fallback: fallback, known: known}
}

// Message returns the localized message for code, or def when the code has no entry.
func (t *Translator) Message(acceptLanguage, code, def string) string {
	if t == nil {
		return def
	}
	if _, ok := t.known[code]; !ok {
		return def
	}
	tag := t.fallback
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			matched, _, _ := t.matcher.Match(tags...)
			tag = matched
		}
	}
	p := message.NewPrinter(tag, message.Catalog(t.catalog))
	return p.Sprintf(code)
}

func mustBase(tag language.Tag) language.Base {
	base, _ := tag.Base()
	return base
}
