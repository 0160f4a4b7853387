// Package validation implements the directive-based column validator used
// at SQL bind time: a directive string such as "is:int|maxval:100" is
// checked against a candidate value, and bind sites fall back to SQL NULL
// rather than poison a typed column with a malformed value.
package validation

import (
	"strconv"
	"strings"

	"github.com/aprsworld/ingestd/internal/apperrors"
)

// Validate checks value against the '|'-separated set of "key:value"
// directives. An unparsable directive value is a fail-closed error. A
// missing "is:" directive with other directives present still runs those
// other checks (ANDed together).
func Validate(directives, value string) error {
	if directives == "" {
		return nil
	}

	for _, raw := range strings.Split(directives, "|") {
		key, arg, _ := strings.Cut(raw, ":")
		switch key {
		case "is":
			switch arg {
			case "int":
				if !isInt(value) {
					return apperrors.Newf(apperrors.TypeValidation, "value %q is not a valid integer", value)
				}
			case "float":
				if !isFloat(value) {
					return apperrors.Newf(apperrors.TypeValidation, "value %q is not a valid float", value)
				}
			default:
				return apperrors.Newf(apperrors.TypeValidation, "unrecognized is: directive %q", arg)
			}
		case "minlen":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid minlen directive %q", arg)
			}
			if !(len(value) > n) {
				return apperrors.Newf(apperrors.TypeValidation, "value length %d must be greater than %d", len(value), n)
			}
		case "maxlen":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid maxlen directive %q", arg)
			}
			if !(len(value) < n) {
				return apperrors.Newf(apperrors.TypeValidation, "value length %d must be less than %d", len(value), n)
			}
		case "minval":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid minval directive %q", arg)
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "value %q is not an integer", value)
			}
			if !(v > n) {
				return apperrors.Newf(apperrors.TypeValidation, "value %d must be greater than %d", v, n)
			}
		case "maxval":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid maxval directive %q", arg)
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "value %q is not an integer", value)
			}
			if !(v < n) {
				return apperrors.Newf(apperrors.TypeValidation, "value %d must be less than %d", v, n)
			}
		case "chrng":
			lo, hi, ok := strings.Cut(arg, "-")
			if !ok {
				return apperrors.Newf(apperrors.TypeValidation, "invalid chrng directive %q", arg)
			}
			l, err := strconv.Atoi(lo)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid chrng low bound %q", lo)
			}
			h, err := strconv.Atoi(hi)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid chrng high bound %q", hi)
			}
			if l >= h {
				return apperrors.Newf(apperrors.TypeValidation, "chrng low bound %d must be less than high bound %d", l, h)
			}
			for i := 0; i < len(value); i++ {
				b := int(value[i])
				if b < l || b > h {
					return apperrors.Newf(apperrors.TypeValidation, "byte %d at offset %d outside range [%d,%d]", b, i, l, h)
				}
			}
		case "chpool":
			for i := 0; i < len(value); i++ {
				if !strings.ContainsRune(arg, rune(value[i])) {
					return apperrors.Newf(apperrors.TypeValidation, "byte %q at offset %d not in pool %q", value[i], i, arg)
				}
			}
		default:
			return apperrors.Newf(apperrors.TypeValidation, "unrecognized directive key %q", key)
		}
	}

	return nil
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isFloat(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i = 1
	}
	dotSeen := false
	digits := 0
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dotSeen:
			dotSeen = true
		case c == 'f' && i == len(s)-1:
			// trailing float suffix, allowed once
		default:
			return false
		}
	}
	return digits > 0
}

// BindOrNull implements the bind-time idiom: an empty string or a value
// that fails validation binds SQL NULL; otherwise the string itself binds.
// The return value is either nil (NULL) or the original string.
func BindOrNull(directives, value string) interface{} {
	if value == "" {
		return nil
	}
	if err := Validate(directives, value); err != nil {
		return nil
	}
	return value
}
