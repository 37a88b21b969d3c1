package vitrine

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the released version of the client.
var Version = strings.TrimSpace(version)
