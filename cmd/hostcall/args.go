package main

import (
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

// callSeparator splits the argument lists of consecutive calls.
const callSeparator = "/"

// parseLiteral reads a command-line argument as a guest value:
// null, true, false, 'c', "text", integers, floats, [a, b] and {k: v}.
// Anything else is a bare string.
func parseLiteral(s string) any {
	s = strings.TrimSpace(s)
	switch s {
	case "null":
		return hostinterop.Null
	case "true":
		return true
	case "false":
		return false
	}
	if len(s) >= 2 {
		switch {
		case s[0] == '\'' && s[len(s)-1] == '\'':
			if r, size := utf8.DecodeRuneInString(s[1 : len(s)-1]); size == len(s)-2 && r != utf8.RuneError {
				return hostinterop.Char(r)
			}
		case s[0] == '"' && s[len(s)-1] == '"':
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
		case s[0] == '[' && s[len(s)-1] == ']':
			arr := hostinterop.Array{}
			for _, part := range splitTop(s[1 : len(s)-1]) {
				arr = append(arr, parseLiteral(part))
			}
			return arr
		case s[0] == '{' && s[len(s)-1] == '}':
			obj := hostinterop.Object{}
			for _, part := range splitTop(s[1 : len(s)-1]) {
				k, v, ok := strings.Cut(part, ":")
				if !ok {
					return s
				}
				obj[strings.TrimSpace(k)] = parseLiteral(v)
			}
			return obj
		}
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i
	}
	if b, ok := new(big.Int).SetString(s, 0); ok {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// splitTop splits on commas outside brackets and quotes.
func splitTop(s string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(parts) > 0 {
		parts = append(parts, s[start:])
	}
	return parts
}

// splitCalls groups arguments into calls separated by callSeparator.
func splitCalls(args []string) [][]any {
	calls := [][]any{{}}
	for _, a := range args {
		if a == callSeparator {
			calls = append(calls, []any{})
			continue
		}
		last := len(calls) - 1
		calls[last] = append(calls[last], parseLiteral(a))
	}
	return calls
}
