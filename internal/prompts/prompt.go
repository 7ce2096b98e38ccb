// Package prompts holds the embedded prompt templates for drawing
// extraction and a fingerprint that versions cache keys whenever the
// templates or the response schema change.
package prompts

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"strings"
	"text/template"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
)

//go:embed structural_system.tmpl
var structuralSystemPrompt string

//go:embed general_system.tmpl
var generalSystemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(
	template.New("user").Funcs(template.FuncMap{"join": strings.Join}).Parse(userPromptTmpl),
)

// Recognized discipline hints.
const (
	DisciplineStructural = "structural"
	DisciplineGeneral    = "general"
)

// SystemPrompt returns the discipline-tailored system prompt. An empty hint
// selects the structural framing; anything unrecognized falls back to the
// general framing.
func SystemPrompt(discipline string) string {
	switch strings.ToLower(strings.TrimSpace(discipline)) {
	case "", DisciplineStructural:
		return structuralSystemPrompt
	default:
		return generalSystemPrompt
	}
}

// UserPromptData carries the per-request context rendered into the user
// prompt.
type UserPromptData struct {
	PageNumber int
	Grid       *extraction.GridInfo
	Focus      string
}

// UserPrompt builds the user prompt for one extraction call.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Fingerprint identifies the current prompt + schema revision. It is folded
// into cache keys so editing a template invalidates cached results without
// manual version bookkeeping.
func Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(structuralSystemPrompt))
	h.Write([]byte(generalSystemPrompt))
	h.Write([]byte(userPromptTmpl))
	h.Write(extraction.ResponseSchemaJSON())
	return hex.EncodeToString(h.Sum(nil))[:12]
}
