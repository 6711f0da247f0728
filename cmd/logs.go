package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/extcore/cli"
	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/util/pathutil"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the extcore log file",
		Long: `Prints the log file configured under logging.file. Structured (JSON) lines
are rendered for reading; other lines are printed as they are.

Examples:
  # Follow the log while an install runs elsewhere
  extcore logs -f

  # Get the last 100 log lines in JSON format
  extcore logs --tail 100 --json
`,
		Args: cobra.NoArgs,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("file", "", "Log file to read (default: logging.file.path)")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	opts := cli.GetOptions(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		if !cfg.Logging.File.Enabled || cfg.Logging.File.Path == "" {
			return errors.New(errors.ErrCodeInvalidInput, "no log file configured").
				WithDetail("hint", "enable logging.file or pass --file")
		}
		path = cfg.Logging.File.Path
	}
	path, err = pathutil.Expand(path)
	if err != nil {
		return err
	}

	printLine := printLogText
	if opts.JSONOutput {
		printLine = printLogJSON
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tailLines < 0 {
		return streamLog(ctx, path, follow, &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}, func(line string) {
			printLine(out, line)
		})
	}

	// Keep the last tailLines lines of the current content, then follow from the end.
	var ring []string
	err = streamLog(ctx, path, false, &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}, func(line string) {
		if tailLines == 0 {
			return
		}
		ring = append(ring, line)
		if len(ring) > tailLines {
			ring = ring[1:]
		}
	})
	if err != nil {
		return err
	}
	for _, line := range ring {
		printLine(out, line)
	}
	if !follow {
		return nil
	}
	return streamLog(ctx, path, true, &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}, func(line string) {
		printLine(out, line)
	})
}

// streamLog reads path from location and hands each line to emit until the
// file ends (or, when following, until ctx ends).
func streamLog(ctx context.Context, path string, follow bool, location *tail.SeekInfo, emit func(string)) error {
	if !follow {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot read log file").WithDetail("path", path)
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Location:  location,
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot read log file").WithDetail("path", path)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				continue
			}
			if text := strings.TrimRight(line.Text, "\r"); text != "" {
				emit(text)
			}
		}
	}
}

// printLogJSON prints a log line as JSON. Lines that are not JSON are wrapped.
func printLogJSON(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		jsonData, _ := json.Marshal(map[string]interface{}{
			"raw_line": line,
			"error":    "failed to parse original log line as JSON",
		})
		fmt.Fprintln(w, string(jsonData))
		return
	}
	jsonData, _ := json.Marshal(logMap)
	fmt.Fprintln(w, string(jsonData))
}

// printLogText pretty-prints a log line for human consumption.
func printLogText(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		fmt.Fprintln(w, line)
		return
	}

	ts, _ := logMap["time"].(string)
	level, _ := logMap["level"].(string)
	msg, _ := logMap["msg"].(string)
	component, _ := logMap["component"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = cli.ErrorStyle
	case "warning", "info":
		levelStyle = cli.AccentStyle
	default:
		levelStyle = cli.MutedStyle
	}

	var keys []string
	for k := range logMap {
		if k != "time" && k != "level" && k != "msg" && k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", cli.MutedStyle.Render(k), logMap[k]))
	}

	fmt.Fprintf(w, "%s %s %s [%s] %s\n",
		timeStr,
		levelStyle.Render(strings.ToUpper(level)),
		msg,
		cli.MutedStyle.Render(component),
		strings.Join(fields, " "),
	)
}
