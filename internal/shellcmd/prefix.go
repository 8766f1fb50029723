package shellcmd

import (
	"fmt"
	"strings"

	"ward/internal/ports"
)

// subcommandBinaries lists binaries whose first argument selects a
// sub-command, so a command-flags prefix keeps two tokens instead of one.
var subcommandBinaries = map[string]bool{
	"git":     true,
	"go":      true,
	"npm":     true,
	"pnpm":    true,
	"yarn":    true,
	"cargo":   true,
	"docker":  true,
	"kubectl": true,
	"pip":     true,
	"apt":     true,
	"brew":    true,
	"gh":      true,
	"make":    true,
}

// PrefixForScope derives the approval prefix for one sub-command under the
// chosen scope. ScopeCustom uses the supplied pattern verbatim.
func PrefixForScope(command string, scope ports.ApprovalScope, pattern string) (string, error) {
	command = strings.TrimSpace(command)
	switch scope {
	case ports.ScopeExact, "":
		if command == "" {
			return "", fmt.Errorf("empty command")
		}
		return command, nil

	case ports.ScopeCommandFlags:
		fields := Fields(command)
		if len(fields) == 0 {
			return "", fmt.Errorf("empty command")
		}
		keep := 1
		if subcommandBinaries[Binary(command)] && len(fields) > 1 {
			keep = 2
		}
		if keep > len(fields) {
			keep = len(fields)
		}
		return strings.Join(fields[:keep], " "), nil

	case ports.ScopeCommandOnly:
		binary := Binary(command)
		if binary == "" {
			return "", fmt.Errorf("no binary in command %q", command)
		}
		return binary, nil

	case ports.ScopeCustom:
		pattern = strings.TrimSpace(pattern)
		if err := ValidatePattern(pattern); err != nil {
			return "", err
		}
		return pattern, nil

	default:
		return "", fmt.Errorf("unknown approval scope %q", scope)
	}
}

// PrefixesForCommand derives deduplicated approval prefixes for a possibly
// compound command. scopes overrides the default scope per sub-command,
// keyed by the sub-command's binary.
func PrefixesForCommand(command string, scope ports.ApprovalScope, pattern string, scopes map[string]ports.ApprovalScope) ([]string, error) {
	subs := SplitCompound(command)
	if len(subs) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	seen := make(map[string]bool, len(subs))
	prefixes := make([]string, 0, len(subs))
	for _, sub := range subs {
		subScope := scope
		if scopes != nil {
			if s, ok := scopes[Binary(sub)]; ok {
				subScope = s
			}
		}
		prefix, err := PrefixForScope(sub, subScope, pattern)
		if err != nil {
			return nil, err
		}
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

// ValidatePattern rejects patterns that would reduce to an unconstrained
// wildcard. A derived rule must always name at least a binary.
func ValidatePattern(pattern string) error {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return fmt.Errorf("empty approval pattern")
	}
	stripped := strings.Trim(trimmed, "*? \t")
	if stripped == "" {
		return fmt.Errorf("approval pattern %q matches everything", pattern)
	}
	return nil
}
