package kernel

import (
	"context"
	"regexp"
	"strings"

	"github.com/itsmostafa/gokernel/internal/protocol"
)

// completionDelims split the code before the cursor; the text after the
// last of them is the token being completed.
const completionDelims = " \t\n`!@#$^&*()=+[{]}\\|;:'\",<>?."

// Decorations the engine embeds in raw candidates, stripped in this order.
var candidatePasses = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\[#.*#\]`), ""},
	{regexp.MustCompile(`( |\*)+(\w+)(#>)`), "${1}${3}"},
	{regexp.MustCompile(` *(#>)`), "${1}"},
	{regexp.MustCompile(`<#([^#>]*)#>`), "${1}"},
}

// Complete lists completions for the token ending at cursorPos, counted in
// Unicode code points.
func (s *Session) Complete(ctx context.Context, code string, cursorPos int) (protocol.CompleteReply, error) {
	runes := []rune(code)
	if cursorPos < 0 || cursorPos > len(runes) {
		cursorPos = len(runes)
	}
	token := lastToken(string(runes[:cursorPos]))

	var raw []string
	err := s.worker.Do(ctx, func() {
		raw = s.eng.Complete(code, cursorPos)
	})
	if err != nil {
		return protocol.CompleteReply{}, err
	}

	matches := make([]string, 0, len(raw))
	for _, c := range raw {
		matches = append(matches, cleanCandidate(c))
	}

	return protocol.CompleteReply{
		Matches:     matches,
		CursorStart: cursorPos - len([]rune(token)),
		CursorEnd:   cursorPos,
		Metadata:    map[string]any{},
		Status:      protocol.StatusOK,
	}, nil
}

// lastToken returns the text after the last delimiter.
func lastToken(before string) string {
	if i := strings.LastIndexAny(before, completionDelims); i >= 0 {
		return before[i+1:]
	}
	return before
}

// cleanCandidate strips the engine's decorations, leaving the bare
// identifier and parameter types.
func cleanCandidate(c string) string {
	for _, p := range candidatePasses {
		c = p.re.ReplaceAllString(c, p.repl)
	}
	return c
}
