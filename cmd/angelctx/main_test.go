package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLogger(t *testing.T) {
	newCtx := func(level string) *cli.Context {
		set := flag.NewFlagSet("test", flag.ContinueOnError)
		set.String("log-level", level, "")
		return cli.NewContext(nil, set, nil)
	}

	t.Run("accepts known levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
			assert.NoError(t, setupLogger(newCtx(level)), "level %q", level)
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		err := setupLogger(newCtx("verbose"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestSearchCommandFlags(t *testing.T) {
	app := &cli.App{
		Name: "angelctx",
		Commands: []*cli.Command{
			{
				Name:   "search",
				Action: func(c *cli.Context) error { return nil },
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Required: true,
					},
				},
			},
		},
	}

	t.Run("user is required", func(t *testing.T) {
		err := app.Run([]string{"angelctx", "search", "feeling anxious"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user")
	})

	t.Run("runs with user set", func(t *testing.T) {
		err := app.Run([]string{"angelctx", "search", "--user", "u1", "feeling anxious"})
		assert.NoError(t, err)
	})
}
