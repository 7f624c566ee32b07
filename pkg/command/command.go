// Package command renders typed operations into vppctl command lines. All
// argument validation happens here, before anything reaches the device.
package command

import (
	"errors"
	"fmt"
	"strings"
)

var ErrValidation = errors.New("invalid argument")

// ErrCommandFailed is returned by Verify when the device output signals a
// failure.
var ErrCommandFailed = errors.New("command failed")

type Check int

const (
	// CheckNone accepts any output. Used for read-only commands.
	CheckNone Check = iota
	// CheckMarkers fails when the output contains an error marker.
	CheckMarkers
	// CheckNonEmpty is CheckMarkers plus a non-empty reply, for commands that
	// print the name of what they created.
	CheckNonEmpty
)

var errorMarkers = []string{"error", "unknown input", "failed"}

type Command struct {
	Line  string
	Check Check
}

func (c Command) String() string {
	return c.Line
}

// Verify applies the command's success check to the device output.
func (c Command) Verify(output string) error {
	switch c.Check {
	case CheckNone:
		return nil
	case CheckNonEmpty:
		if strings.TrimSpace(output) == "" {
			return fmt.Errorf("%w: %s: empty reply", ErrCommandFailed, c.Line)
		}
	}
	if marker, ok := HasErrorMarker(output); ok {
		return fmt.Errorf("%w: %s: output contains %q", ErrCommandFailed, c.Line, marker)
	}
	return nil
}

// HasErrorMarker reports the first error marker found in output, matched
// case-insensitively.
func HasErrorMarker(output string) (string, bool) {
	lower := strings.ToLower(output)
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}

func read(line string) Command {
	return Command{Line: line, Check: CheckNone}
}

func write(format string, args ...any) Command {
	return Command{Line: fmt.Sprintf(format, args...), Check: CheckMarkers}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validateName(kind, name string) error {
	if name == "" {
		return invalid("%s name is empty", kind)
	}
	if strings.ContainsAny(name, " \t\r\n\"") {
		return invalid("%s name %q contains whitespace or quotes", kind, name)
	}
	return nil
}

func ShowInterfaces() Command         { return read("show interface") }
func ShowInterfaceAddresses() Command { return read("show interface addr") }
func ShowHardware() Command           { return read("show hardware-interfaces") }
func ShowBondDetails() Command        { return read("show bond details") }
func ShowLcp() Command                { return read("show lcp") }
func ShowVersion() Command            { return read("show version") }

// Raw wraps an operator-supplied line. Output is checked for error markers
// but the line itself is passed through untouched.
func Raw(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, invalid("empty command")
	}
	if strings.ContainsAny(line, "\r\n") {
		return Command{}, invalid("command must be a single line")
	}
	return Command{Line: line, Check: CheckMarkers}, nil
}
