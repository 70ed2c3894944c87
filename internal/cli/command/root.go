package command

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Jonathanzhao02/strongbox/internal/config"
	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/internal/infra/buildinfo"
	"github.com/Jonathanzhao02/strongbox/internal/storage/snapshot"
	"github.com/Jonathanzhao02/strongbox/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "strongbox-cli",
		Usage:   "Strongbox snapshot management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Before:  setup,
		Commands: []*cli.Command{
			InspectCommand(),
			ClientsCommand(),
			SyncCommand(),
			KeygenCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Configuration file (YAML)",
			EnvVars: []string{"STRONGBOX_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// setup resolves configuration and installs the redacting logger before
// any command runs.
func setup(c *cli.Context) error {
	var opts []config.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger.SetDefault(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	return nil
}

// accessFlags returns the flags that identify snapshot key material,
// optionally namespaced (e.g. "source-", "target-").
func accessFlags(prefix string) []cli.Flag {
	envInfix := strings.ToUpper(strings.ReplaceAll(prefix, "-", "_"))
	return []cli.Flag{
		&cli.StringFlag{
			Name:    prefix + "key-file",
			Usage:   "File holding a hex-encoded 32-byte snapshot key",
			EnvVars: []string{"STRONGBOX_" + envInfix + "KEY_FILE"},
		},
		&cli.StringFlag{
			Name:    prefix + "passphrase",
			Usage:   "Snapshot passphrase",
			EnvVars: []string{"STRONGBOX_" + envInfix + "PASSPHRASE"},
		},
	}
}

// parseAccess builds snapshot access from the prefixed flags.
func parseAccess(c *cli.Context, prefix string) (snapshot.Access, error) {
	if pass := c.String(prefix + "passphrase"); pass != "" {
		return snapshot.Access{Passphrase: []byte(pass)}, nil
	}
	keyFile := c.String(prefix + "key-file")
	if keyFile == "" {
		return snapshot.Access{}, fmt.Errorf("either --%spassphrase or --%skey-file is required", prefix, prefix)
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return snapshot.Access{}, fmt.Errorf("read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return snapshot.Access{}, fmt.Errorf("decode key file: %w", err)
	}
	return snapshot.Access{Key: key}, nil
}

// parseClientID decodes a hex client address argument.
func parseClientID(arg string) (domain.ClientID, error) {
	var id domain.ClientID
	if err := id.UnmarshalText([]byte(arg)); err != nil {
		return id, fmt.Errorf("invalid client id %q: %w", arg, err)
	}
	return id, nil
}
