// Package cli constructs the repogov command-line interface. It wires the
// Cobra root command, the viper-backed configuration loader with embedded
// defaults, and the zap logger, then registers the governance commands.
package cli
