package session

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator checks a field's submitted value, returning true if valid.
// Adapted from the teacher's looper.go Validator/NonBlank/IsInteger.
type Validator func(input string) bool

// NonBlank rejects a value that is empty after trimming whitespace.
var NonBlank Validator = func(input string) bool {
	return strings.TrimSpace(input) != ""
}

var isIntegerRegexp = regexp.MustCompile(`^-?[0-9]+$`)

// IsInteger accepts an optionally-signed decimal integer.
var IsInteger Validator = func(input string) bool {
	return isIntegerRegexp.MatchString(strings.TrimSpace(input))
}

// FieldRules is the validation policy for one named field (teacher's
// looper.go FieldRules, field-name keying replaced by presentation-space
// field addresses since this package has no named-field screen model).
type FieldRules struct {
	// MustChange requires the submitted value to differ from original.
	MustChange bool

	// ErrorText is shown when MustChange fails; if empty, a generic
	// message is generated.
	ErrorText string

	// Validator, if non-nil, runs after the MustChange check.
	Validator Validator
}

// Rules maps a field's start address (ps.Field.StartAddr) to its
// FieldRules.
type Rules map[int]FieldRules

// ValidateFields checks every ruled field's current content against its
// rule, given the field's original content keyed the same way. It
// returns the address of a failing field and a human-readable message,
// or ok=true if every ruled field passed. Rules is a map, so when several
// fields fail, which one is reported is not defined.
func ValidateFields(rules Rules, original, current map[int]string) (addr int, message string, ok bool) {
	for fieldAddr, rule := range rules {
		value, present := current[fieldAddr]
		if !present {
			continue
		}
		if rule.MustChange && value == original[fieldAddr] {
			msg := rule.ErrorText
			if msg == "" {
				msg = fmt.Sprintf("please enter a valid value for field at %d", fieldAddr)
			}
			return fieldAddr, msg, false
		}
		if rule.Validator != nil && !rule.Validator(value) {
			return fieldAddr, fmt.Sprintf("value for field at %d is not valid", fieldAddr), false
		}
	}
	return 0, "", true
}
