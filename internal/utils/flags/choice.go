package flags

import (
	"fmt"
	"strings"
)

const (
	choicePlaceholderTemplateConstant  = "`<%s>`"
	choiceUsageTemplateConstant        = "%s %s"
	choiceSeparatorConstant            = "|"
	choiceListSeparatorConstant        = ", "
	invalidChoiceErrorTemplateConstant = "%q is not one of %s"
)

// Choice is an enumerated string option with a default.
type Choice struct {
	defaultValue string
	values       []string
}

// InvalidChoiceError reports a value outside the allowed set.
type InvalidChoiceError struct {
	Value   string
	Allowed []string
}

// Error describes the rejected value.
func (invalidChoice InvalidChoiceError) Error() string {
	return fmt.Sprintf(invalidChoiceErrorTemplateConstant, invalidChoice.Value, strings.Join(invalidChoice.Allowed, choiceListSeparatorConstant))
}

// NewChoice builds a Choice. Values are lowercased, trimmed and de-duplicated in order.
func NewChoice(defaultValue string, values ...string) Choice {
	normalizedValues := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalizedValue := normalizeChoiceValue(value)
		if len(normalizedValue) == 0 {
			continue
		}
		if _, duplicate := seen[normalizedValue]; duplicate {
			continue
		}
		seen[normalizedValue] = struct{}{}
		normalizedValues = append(normalizedValues, normalizedValue)
	}
	return Choice{defaultValue: normalizeChoiceValue(defaultValue), values: normalizedValues}
}

// Default returns the normalized default value.
func (choice Choice) Default() string {
	return choice.defaultValue
}

// Values returns the allowed values.
func (choice Choice) Values() []string {
	return append([]string{}, choice.values...)
}

// Usage renders flag help with the default capitalized, e.g. "`<API|clone>` description".
func (choice Choice) Usage(description string) string {
	displayValues := make([]string, 0, len(choice.values))
	for _, value := range choice.values {
		if value == choice.defaultValue {
			value = strings.ToUpper(value)
		}
		displayValues = append(displayValues, value)
	}

	placeholder := fmt.Sprintf(choicePlaceholderTemplateConstant, strings.Join(displayValues, choiceSeparatorConstant))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return fmt.Sprintf(choiceUsageTemplateConstant, placeholder, trimmedDescription)
}

// Normalize lowercases and trims rawValue. Blank input yields the default.
func (choice Choice) Normalize(rawValue string) (string, error) {
	normalizedValue := normalizeChoiceValue(rawValue)
	if len(normalizedValue) == 0 {
		return choice.defaultValue, nil
	}
	for _, value := range choice.values {
		if value == normalizedValue {
			return normalizedValue, nil
		}
	}
	return "", InvalidChoiceError{Value: rawValue, Allowed: choice.Values()}
}

func normalizeChoiceValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
