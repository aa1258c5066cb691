package scaffold

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// FilePlaceholder marks where the file path goes in a formatter command.
const FilePlaceholder = "{file}"

// DefaultFormatCommand is PHP_CodeSniffer's fixer with the PSR-2 standard.
func DefaultFormatCommand() string {
	if runtime.GOOS == "windows" {
		return `.\vendor\bin\phpcbf.bat {file} --standard=PSR2`
	}
	return "vendor/bin/phpcbf {file} --standard=PSR2"
}

// Formatter reformats a generated file in place.
type Formatter interface {
	Format(ctx context.Context, path string) error
}

// Command runs an external formatter. Line is split on whitespace and
// FilePlaceholder is replaced in every argument.
type Command struct {
	Line string
	Dir  string
}

// Format runs the command for path. phpcbf exits with 1 when it fixed
// something, so only a failure to start or an exit code above 1 is an error.
func (c *Command) Format(ctx context.Context, path string) error {
	line := c.Line
	if line == "" {
		line = DefaultFormatCommand()
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty formatter command")
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, FilePlaceholder, path)
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = c.Dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return nil
	}
	return fmt.Errorf("running %s: %w: %s", fields[0], err, strings.TrimSpace(string(out)))
}
