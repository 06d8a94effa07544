package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"sketchbook/internal/game"
)

const (
	maxNameLength    = game.MaxNameLength
	maxPromptLength  = game.MaxPromptLength
	maxContentLength = 280
	maxImageBytes    = 512 * 1024
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		for tag, check := range textChecks {
			_ = engine.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				_, err := check(fl.Field().String())
				return err == nil
			})
		}
	})
}

// textChecks backs the custom binding tags. The error text doubles as the
// response message.
var textChecks = map[string]func(string) (string, error){
	"name":   validateName,
	"prompt": validatePrompt,
}

func validateName(name string) (string, error) {
	return validateText("name", name, maxNameLength)
}

func validatePrompt(text string) (string, error) {
	return validateText("prompt", text, maxPromptLength)
}

// validateContent checks the text written on a text page. Empty content is
// allowed here; the manager decides whether the turn needs it.
func validateContent(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	if len([]rune(trimmed)) > maxContentLength {
		return "", fmt.Errorf("content must be %d characters or fewer", maxContentLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("content contains unsupported characters")
	}
	return trimmed, nil
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len([]rune(trimmed)) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

// isSafeText accepts letters and digits in any script plus common
// punctuation. Control characters and markup are rejected.
func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case ' ', '\n', '-', '_', '\'', '"', '.', ',', '!', '?', ':', ';', '&', '(', ')', '/', '~', '、', '。', '！', '？':
			continue
		default:
			return false
		}
	}
	return true
}
