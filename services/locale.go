package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const defaultCurrency = "USD"

// normalizeCurrency returns the ISO 4217 code for raw, or USD when raw is
// empty or not a known currency.
func normalizeCurrency(raw string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return defaultCurrency
	}
	return unit.String()
}

// LanguageInstruction tells the model which language to answer in. A UI
// language may be a BCP 47 tag ("zh-HK") or a display name ("Japanese").
func LanguageInstruction(uiLanguage string) string {
	uiLanguage = strings.TrimSpace(uiLanguage)
	if uiLanguage == "" {
		return "MUST output responses in the user's inferred language based on their input."
	}
	return fmt.Sprintf("MUST output responses entirely in %s.", languageName(uiLanguage))
}

func languageName(raw string) string {
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return raw
	}
	return fmt.Sprintf("%s (%s)", name, tag.String())
}
