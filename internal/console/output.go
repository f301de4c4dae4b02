package console

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/protocol"
)

var (
	// inPromptStyle for the input prompt
	inPromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	// outPromptStyle for the result prompt
	outPromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	// dimStyle for continuation prompts and metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// errorStyle for error names
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	// warnStyle for text written to stderr
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	// bannerStyle for the startup banner
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
)

// FormatBanner renders the kernel banner with language information
func FormatBanner(w io.Writer, info protocol.KernelInfoReply) {
	content := fmt.Sprintf("%s\n%s %s  %s %s",
		info.Banner,
		dimStyle.Render("Language:"), info.LanguageInfo.Name,
		dimStyle.Render("Protocol:"), info.ProtocolVersion,
	)
	fmt.Fprintln(w, bannerStyle.Render(content))
}

// inPrompt returns the prompt shown before the first line of a cell
func inPrompt(counter int) string {
	return inPromptStyle.Render(fmt.Sprintf("In [%d]:", counter)) + " "
}

// continuationPrompt is aligned under inPrompt
func continuationPrompt(counter int) string {
	width := len(fmt.Sprintf("In [%d]:", counter))
	return dimStyle.Render(strings.Repeat(" ", width-4)+"...:") + " "
}

// FormatResult renders an execution result
func FormatResult(w io.Writer, counter int, payload display.Payload) {
	fmt.Fprintf(w, "%s %s\n\n", outPromptStyle.Render(fmt.Sprintf("Out[%d]:", counter)), payloadText(payload))
}

// FormatDisplay renders a display_data payload
func FormatDisplay(w io.Writer, payload display.Payload) {
	fmt.Fprintln(w, strings.TrimRight(payloadText(payload), "\n"))
}

// FormatError renders an execution error
func FormatError(w io.Writer, ename, evalue string) {
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render(ename+":"), strings.TrimRight(evalue, "\n"))
}

// FormatStream renders text sent on a named stream
func FormatStream(w io.Writer, name, text string) {
	if name == "stderr" {
		text = warnStyle.Render(text)
	}
	fmt.Fprint(w, text)
}

// payloadText picks the representation a terminal can show: plain text
// first, then LaTeX source, then whatever else is there.
func payloadText(payload display.Payload) string {
	if s, ok := payload[display.MIMEPlain]; ok {
		return s
	}
	if s, ok := payload[display.MIMELatex]; ok {
		return s
	}
	mimes := make([]string, 0, len(payload))
	for mime := range payload {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)
	if len(mimes) == 0 {
		return ""
	}
	return payload[mimes[0]]
}
