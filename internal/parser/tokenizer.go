package parser

import (
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Tokenize scans text for command tokens and returns them in textual order.
//
// Grammar:
//
//	token  = "<" TYPE ws* "::" ws* params ">"
//	TYPE   = "SET" | "ADD" | "DEL" | "REMOVE" | "TIMED_SET" | "CANCEL_SET" | "RESPONSE_SUMMARY" | "EVAL"
//	params = any characters except ">"
//
// Anything that does not match is narrative and is skipped. The scan is single
// pass and tokens never nest.
func Tokenize(text string) []domain.Command {
	var cmds []domain.Command
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '<')
		if open < 0 {
			break
		}
		pos := i + open
		cmd, next, ok := scanToken(text, pos)
		if !ok {
			i = pos + 1
			continue
		}
		cmds = append(cmds, cmd)
		i = next
	}
	return cmds
}

// scanToken tries to read one token starting at the "<" at pos.
func scanToken(text string, pos int) (domain.Command, int, bool) {
	j := pos + 1
	for j < len(text) && isTypeChar(text[j]) {
		j++
	}
	t, ok := domain.ParseCommandType(text[pos+1 : j])
	if !ok {
		return domain.Command{}, 0, false
	}
	j = skipSpace(text, j)
	if !strings.HasPrefix(text[j:], "::") {
		return domain.Command{}, 0, false
	}
	j = skipSpace(text, j+2)
	rel := strings.IndexByte(text[j:], '>')
	if rel < 0 {
		return domain.Command{}, 0, false
	}
	return domain.Command{
		Type:   t,
		Raw:    text[j : j+rel],
		Origin: domain.OriginText,
	}, j + rel + 1, true
}

func isTypeChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || c == '_'
}

func skipSpace(text string, j int) int {
	for j < len(text) {
		switch text[j] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			j++
		default:
			return j
		}
	}
	return j
}
