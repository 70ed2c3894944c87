package command

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Jonathanzhao02/strongbox/internal/storage/snapshot"
)

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a random 32-byte snapshot key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the hex-encoded key to a file instead of stdout",
			},
		},
		Action: keygenAction,
	}
}

func keygenAction(c *cli.Context) error {
	key, err := snapshot.GenerateKey()
	if err != nil {
		return err
	}
	defer snapshot.ZeroKey(key)

	encoded := hex.EncodeToString(key)
	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "key written to %s\n", path)
		return nil
	}

	fmt.Fprintln(c.App.Writer, encoded)
	return nil
}
