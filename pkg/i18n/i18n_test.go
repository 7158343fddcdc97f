package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageNegotiatesLanguage(t *testing.T) {
	tr := New("es")

	assert.Equal(t, "La sesión está ocupada, intente nuevamente", tr.Message("", "SESSION_BUSY", "busy"))
	assert.Equal(t, "Session is busy, retry later", tr.Message("en-US,en;q=0.9", "SESSION_BUSY", "busy"))
	assert.Equal(t, "custom", tr.Message("en", "UNKNOWN_CODE", "custom"))
}

func TestNilTranslatorReturnsDefault(t *testing.T) {
	var tr *Translator
	assert.Equal(t, "fallback", tr.Message("es", "SESSION_BUSY", "fallback"))
}
