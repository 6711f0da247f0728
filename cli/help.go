package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	AccentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#7aa2f7"})
	MutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#565f89"})
	OKStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#9ece6a"})
	ErrorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f7768e"})

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#ff9e64"})
	sectionStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#ff9e64"})
	flagStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#7e22ce", Dark: "#bb9af7"})
)

const (
	maxHelpWidth = 80
	minHelpWidth = 40
)

// helpWidth returns the terminal width clamped to a readable range.
func helpWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minHelpWidth || width > maxHelpWidth {
		return maxHelpWidth
	}
	return width
}

// SetStyledHelp applies consistent styling to a command's help output.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelp)
}

// ApplyStyledHelpRecursive applies styled help to a command and all its
// subcommands. Call this after all subcommands have been added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelp)
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// splitExamples separates a trailing "Examples:" block from a long description.
func splitExamples(long string) (description, examples string) {
	if idx := strings.Index(long, "\nExamples:\n"); idx != -1 {
		return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len("\nExamples:\n"):])
	}
	return strings.TrimSpace(long), ""
}

func styledHelp(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	body := lipgloss.NewStyle().Width(helpWidth() - 2)

	fmt.Fprintln(out, " "+titleStyle.Render(strings.ToUpper(cmd.CommandPath())))
	if cmd.Short != "" {
		writeIndented(out, body.Italic(true).Render(cmd.Short), " ")
	}

	description, examples := splitExamples(cmd.Long)
	if description != "" && description != cmd.Short {
		fmt.Fprintln(out)
		writeIndented(out, body.Render(description), " ")
	}

	var usage []string
	if cmd.Runnable() {
		usage = append(usage, cmd.UseLine())
	}
	if cmd.HasAvailableSubCommands() {
		usage = append(usage, cmd.CommandPath()+" [command]")
	}
	writeSection(out, "USAGE", usage)

	var names, shorts []string
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			names = append(names, sub.Name())
			shorts = append(shorts, sub.Short)
		}
	}
	writeSection(out, "COMMANDS", columns(names, shorts, AccentStyle.Bold(true)))

	var flags, usages []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		flags = append(flags, flagName(f))
		u := f.Usage
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			u += MutedStyle.Render(" (default: " + f.DefValue + ")")
		}
		usages = append(usages, u)
	})
	writeSection(out, "FLAGS", columns(flags, usages, flagStyle))

	if cmd.Example != "" {
		examples = cmd.Example
	}
	var exampleLines []string
	for _, line := range strings.Split(examples, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			exampleLines = append(exampleLines, "")
		case strings.HasPrefix(line, "#"):
			exampleLines = append(exampleLines, MutedStyle.Render(line))
		default:
			exampleLines = append(exampleLines, "  "+line)
		}
	}
	if examples != "" {
		writeSection(out, "EXAMPLES", exampleLines)
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(out, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

func writeSection(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, "\n "+sectionStyle.Render(title))
	for _, line := range lines {
		fmt.Fprintln(w, strings.TrimRight(" "+line, " "))
	}
}

func writeIndented(w io.Writer, text, indent string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(w, strings.TrimRight(indent+line, " "))
	}
}

// columns pads left so the right column lines up.
func columns(left, right []string, style lipgloss.Style) []string {
	width := 0
	for _, l := range left {
		width = max(width, len(l))
	}
	lines := make([]string, len(left))
	for i, l := range left {
		lines[i] = style.Render(l) + strings.Repeat(" ", width-len(l)) + "  " + right[i]
	}
	return lines
}

// flagName formats a flag as "-f, --flag" or "    --flag".
func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}
