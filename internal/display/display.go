package display

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"songlens/internal/batch"
	"songlens/internal/song"
)

// Display is the presentation surface driven by the workflow.
type Display interface {
	DisplayResults(v song.View)
	DisplayErrorState(message string)
	ResetDisplay()
	Alert(message string)
	DisplayProgress(p batch.Progress)
	DisplaySummary(views []song.View)
}

// ModelLabel turns a model name such as "mood_happy" into "Mood Happy".
// A Caser carries state, so each call builds its own.
func ModelLabel(model string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(model, "_", " "))
}

// KeyText renders the key or "?" when unknown.
func KeyText(v song.View) string {
	if label := v.Analysis.KeyLabel(); label != "" {
		return label
	}
	return "?"
}

// BPMText renders the rounded tempo or "?" when unknown.
func BPMText(v song.View) string {
	if v.Analysis.BPM <= 0 {
		return "?"
	}
	return formatInt(roundHalfUp(v.Analysis.BPM))
}

// Nop discards everything. It is used when no terminal is attached and in
// tests.
type Nop struct{}

func (Nop) DisplayResults(song.View)       {}
func (Nop) DisplayErrorState(string)       {}
func (Nop) ResetDisplay()                  {}
func (Nop) Alert(string)                   {}
func (Nop) DisplayProgress(batch.Progress) {}
func (Nop) DisplaySummary([]song.View)     {}
