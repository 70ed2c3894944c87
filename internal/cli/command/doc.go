// Package command provides CLI command definitions for strongbox-cli.
//
// It uses urfave/cli/v2 for command parsing. The commands operate on
// snapshot files directly; no server connection is involved.
package command
