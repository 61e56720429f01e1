package components

import (
	"strings"

	"github.com/artpar/wspanel/internal/tui"
	"github.com/charmbracelet/lipgloss"
)

// jsonStyles colors the tokens of an indented JSON payload.
type jsonStyles struct {
	key, str, num, literal, punct lipgloss.Style
}

var defaultJSONStyles = jsonStyles{
	key:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	str:     lipgloss.NewStyle().Foreground(tui.ColorReceived),
	num:     lipgloss.NewStyle().Foreground(tui.ColorWarn),
	literal: lipgloss.NewStyle().Foreground(tui.ColorSent),
	punct:   lipgloss.NewStyle().Foreground(tui.ColorMuted),
}

// highlightJSONLine colors one line of json.Indent output. Lines cut
// mid-token are colored as far as they go.
func highlightJSONLine(line string, s jsonStyles) string {
	body := strings.TrimLeft(line, " ")
	var b strings.Builder
	b.WriteString(line[:len(line)-len(body)])

	chars := []rune(body)
	for i := 0; i < len(chars); {
		switch ch := chars[i]; {
		case ch == '"':
			end := scanString(chars, i)
			tok := string(chars[i:end])
			j := end
			for j < len(chars) && chars[j] == ' ' {
				j++
			}
			if j < len(chars) && chars[j] == ':' {
				b.WriteString(s.key.Render(tok))
			} else {
				b.WriteString(s.str.Render(tok))
			}
			i = end
		case ch == '-' || (ch >= '0' && ch <= '9'):
			end := scanWhile(chars, i, func(r rune) bool {
				return r == '-' || r == '+' || r == '.' || r == 'e' || r == 'E' || (r >= '0' && r <= '9')
			})
			b.WriteString(s.num.Render(string(chars[i:end])))
			i = end
		case ch >= 'a' && ch <= 'z':
			end := scanWhile(chars, i, func(r rune) bool { return r >= 'a' && r <= 'z' })
			word := string(chars[i:end])
			if word == "true" || word == "false" || word == "null" {
				word = s.literal.Render(word)
			}
			b.WriteString(word)
			i = end
		case strings.ContainsRune("{}[]:,", ch):
			b.WriteString(s.punct.Render(string(ch)))
			i++
		default:
			b.WriteRune(ch)
			i++
		}
	}
	return b.String()
}

// scanString returns the index just past the string literal at start.
func scanString(chars []rune, start int) int {
	for i := start + 1; i < len(chars); i++ {
		switch chars[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(chars)
}

func scanWhile(chars []rune, start int, ok func(rune) bool) int {
	i := start
	for i < len(chars) && ok(chars[i]) {
		i++
	}
	return i
}
