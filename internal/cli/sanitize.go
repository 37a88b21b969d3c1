package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/aretw0/vitrine/internal/presentation/tui"
)

var (
	// DefaultMaxCommandSize bounds one operator command line.
	DefaultMaxCommandSize = 4096
	// EnvMaxCommandSize overrides DefaultMaxCommandSize.
	EnvMaxCommandSize = "VITRINE_MAX_COMMAND_SIZE"
)

var (
	ErrCommandTooLarge = errors.New("command exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("command contains invalid UTF-8 sequences")
)

// SanitizeCommand rejects oversized or invalid UTF-8 lines and strips
// control characters from the rest. Widget values typed by the operator
// are sent to the server verbatim, so they are cleaned here.
func SanitizeCommand(line string) (string, error) {
	limit := maxCommandSize()
	if len(line) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrCommandTooLarge, len(line), limit)
	}
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}
	return tui.StripControl(line), nil
}

func maxCommandSize() int {
	if val := os.Getenv(EnvMaxCommandSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxCommandSize
}
