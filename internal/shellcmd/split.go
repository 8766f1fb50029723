// Package shellcmd derives approval prefixes from shell command strings.
package shellcmd

import "strings"

// SplitCompound splits a shell command line into its top-level sub-commands,
// honoring quoting. Separators are &&, ||, ;, | and newlines. Redirections
// and subshell contents are left untouched inside their sub-command.
func SplitCompound(command string) []string {
	var (
		parts   []string
		current strings.Builder
		quote   rune
		depth   int
	)

	flush := func() {
		part := strings.TrimSpace(current.String())
		if part != "" {
			parts = append(parts, part)
		}
		current.Reset()
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			current.WriteRune(r)
			if r == quote && (quote != '"' || i == 0 || runes[i-1] != '\\') {
				quote = 0
			}
			continue
		}

		switch r {
		case '\'', '"', '`':
			quote = r
			current.WriteRune(r)
		case '(':
			depth++
			current.WriteRune(r)
		case ')':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case '&', '|':
			if depth > 0 {
				current.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == r {
				flush()
				i++
				continue
			}
			if r == '|' {
				flush()
				continue
			}
			// Trailing single & (background) is not a separator.
			current.WriteRune(r)
		case ';', '\n':
			if depth > 0 {
				current.WriteRune(r)
				continue
			}
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return parts
}

// Fields splits one sub-command into whitespace-separated tokens, honoring
// single and double quotes. Quotes are kept so derived prefixes stay literal.
func Fields(command string) []string {
	var (
		fields  []string
		current strings.Builder
		quote   rune
	)

	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}

	for _, r := range command {
		if quote != 0 {
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		}
		switch {
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ' ' || r == '\t':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return fields
}

// Binary returns the bare binary name of a sub-command, with any leading
// env-var assignments and path components stripped.
func Binary(command string) string {
	for _, field := range Fields(command) {
		if isEnvAssignment(field) {
			continue
		}
		if idx := strings.LastIndex(field, "/"); idx >= 0 {
			return field[idx+1:]
		}
		return field
	}
	return ""
}

func isEnvAssignment(field string) bool {
	eq := strings.Index(field, "=")
	if eq <= 0 {
		return false
	}
	for _, r := range field[:eq] {
		if r != '_' && (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
