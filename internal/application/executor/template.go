package executor

import (
	"strings"
	"unicode/utf8"
)

// renderTemplate substitutes {{name}} placeholders with values from vars.
// Unknown placeholders are left intact so they stay visible in prompts.
func renderTemplate(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 {
		return text
	}
	var b strings.Builder
	rest := text
	for {
		open := strings.Index(rest, "{{")
		if open == -1 {
			b.WriteString(rest)
			return b.String()
		}
		close := strings.Index(rest[open:], "}}")
		if close == -1 {
			b.WriteString(rest)
			return b.String()
		}
		close += open
		name := strings.TrimSpace(rest[open+2 : close])
		b.WriteString(rest[:open])
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(rest[open : close+2])
		}
		rest = rest[close+2:]
	}
}

// evalCondition evaluates a gate condition against run variables.
// Supported forms: `a == b`, `a != b`, and a bare name (truthy when the
// value is non-empty and not "false"/"0"). Operands may be variable names
// or quoted literals. Unknown expressions evaluate to true so a broken
// condition pauses rather than silently skipping a gate.
func evalCondition(expr string, vars map[string]string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	if idx := strings.Index(expr, "=="); idx != -1 {
		left := resolveOperand(expr[:idx], vars)
		right := resolveOperand(expr[idx+2:], vars)
		return left == right
	}
	if idx := strings.Index(expr, "!="); idx != -1 {
		left := resolveOperand(expr[:idx], vars)
		right := resolveOperand(expr[idx+2:], vars)
		return left != right
	}
	val := resolveOperand(expr, vars)
	return val != "" && val != "false" && val != "0"
}

// resolveOperand resolves a condition operand: quoted strings are
// literals, everything else is a variable lookup (missing vars resolve
// to the empty string).
func resolveOperand(s string, vars map[string]string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return vars[s]
}

// truncatePreview shortens gate review data to a readable preview. The
// cut lands on a rune boundary so multi-byte text is never split.
func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
