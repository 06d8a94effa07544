package game

import "strings"

const (
	freeInputWord         = "FREE"
	freeInputPrefix       = "FREE:"
	freeInputChoicePrefix = "FREE_CHOICE:"
	cardSize              = 6
)

// Prompt is one catalog entry. Order is the dice face that selects it.
type Prompt struct {
	ID      uint
	Word    string
	Order   int
	CardNum int
}

// FreeInput reports whether the prompt asks the player for their own phrase,
// and the genre hint if the word carries one.
func (p Prompt) FreeInput() (bool, string) {
	return parseFreeInput(p.Word)
}

func parseFreeInput(word string) (bool, string) {
	switch {
	case word == freeInputWord:
		return true, ""
	case strings.HasPrefix(word, freeInputChoicePrefix):
		return true, strings.TrimSpace(strings.TrimPrefix(word, freeInputChoicePrefix))
	case strings.HasPrefix(word, freeInputPrefix):
		return true, strings.TrimSpace(strings.TrimPrefix(word, freeInputPrefix))
	}
	return false, ""
}

// freeInputPlaceholder is written on page 1 for free-input prompts whose
// owner was not asked for a phrase.
func freeInputPlaceholder(genre string) string {
	if genre == "" {
		return "free choice"
	}
	return "free choice: " + genre
}
