package client

import (
	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/pricerelay/internal/config"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// ConfigFunc resolves the effective configuration for commands that talk to
// the bus directly.
type ConfigFunc func() (cfgpkg.Config, error)

// Commands returns every client command for registration on a root command.
func Commands(baseURL BaseURLFunc, cfg ConfigFunc) []*cobra.Command {
	return []*cobra.Command{
		NewSnapshotCommand(baseURL),
		NewTailCommand(baseURL),
		NewPublishCommand(cfg),
	}
}
