// Package router turns chat messages into command invocations. Slash command
// interactions are first rewritten into synthetic messages so both paths
// share one dispatcher.
package router

import (
	"strings"
	"unicode"
)

// Parse strips the prefix or a leading mention of one of mentionIDs from
// content and splits the rest into a lower-cased command name and its
// arguments. ok is false when the message is not addressed to the bot.
func Parse(content, prefix string, mentionIDs ...string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)

	rest, matched := stripMention(content, mentionIDs)
	if !matched {
		if prefix == "" || !strings.HasPrefix(content, prefix) {
			return "", nil, false
		}
		rest = content[len(prefix):]
	}

	tokens := Tokenize(rest)
	if len(tokens) == 0 {
		return "", nil, false
	}
	return strings.ToLower(tokens[0]), tokens[1:], true
}

func stripMention(content string, ids []string) (string, bool) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		for _, m := range []string{"<@" + id + ">", "<@!" + id + ">"} {
			if strings.HasPrefix(content, m) {
				return content[len(m):], true
			}
		}
	}
	return "", false
}

// Tokenize splits s on whitespace; double quotes group words and are removed.
// A backslash escapes a following quote or backslash. An unterminated quote
// runs to the end of the input.
func Tokenize(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			i++
			cur.WriteRune(runes[i])
			started = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return tokens
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote returns s in a form Tokenize reads back as a single token.
func Quote(s string) string {
	if s != "" && !strings.ContainsFunc(s, unicode.IsSpace) && !strings.ContainsAny(s, `"\`) {
		return s
	}
	return `"` + quoteEscaper.Replace(s) + `"`
}
