package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize strips an output-redirection clause from raw and trims it.
//
// Everything from the first unquoted output-redirection operator to the end
// of the line is removed: ">", ">>", "N>", "N>>" and "&>". The result never
// contains an unquoted redirection, so Normalize is idempotent.
func Normalize(raw string) (string, error) {
	s := norm.NFC.String(raw)
	if i := redirectionStart(s); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &MalformedCommandError{Position: -1, Raw: raw, Reason: "empty after stripping redirection"}
	}
	return s, nil
}

// redirectionStart returns the byte offset where the output redirection
// clause begins, or -1. Quotes and backslash escapes are honored.
func redirectionStart(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case c == '\\':
			i++
		case quote == '"':
			if c == '"' {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '>':
			return operatorStart(s, i)
		}
	}
	return -1
}

// operatorStart widens the '>' at i to include a leading file descriptor
// number ("2>") or ampersand ("&>") when it stands as its own word.
func operatorStart(s string, i int) int {
	j := i
	for j > 0 && s[j-1] >= '0' && s[j-1] <= '9' {
		j--
	}
	if j == i && j > 0 && s[j-1] == '&' {
		j--
	}
	if j < i && j > 0 && !isSpace(s[j-1]) {
		// "foo2>x" or "a&>x": the digits belong to the previous word.
		return i
	}
	return j
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
