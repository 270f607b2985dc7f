package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"

	"vigil/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Interactively create a provider registry",
		Description: `Asks for the providers to monitor and writes a providers.toml
that serve, watch and check can use. Refuses to overwrite an existing file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "config/providers.toml",
				Usage:   "Where to write the registry",
				EnvVars: []string{"VIGIL_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			output := ctx.String("output")
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", output)
			}

			var cfg config.Config
			for {
				provider, err := askProvider()
				if err != nil {
					return err
				}
				cfg.Providers = append(cfg.Providers, provider)

				more, err := prompt.New().Ask("Add another provider?").Choose([]string{"yes", "no"})
				if err != nil {
					return err
				}
				if more != "yes" {
					break
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := toml.NewEncoder(f).Encode(cfg); err != nil {
				return err
			}

			fmt.Println("Wrote registry to", output)
			return nil
		},
	}
}

func askProvider() (config.Provider, error) {
	name, err := prompt.New().Ask("Provider name:").Input("openai")
	if err != nil {
		return config.Provider{}, err
	}

	feedURL, err := prompt.New().Ask("Status feed URL:").Input("https://status.openai.com/history.atom")
	if err != nil {
		return config.Provider{}, err
	}

	intervalStr, err := prompt.New().Ask("Poll interval in seconds:").Input("30")
	if err != nil {
		return config.Provider{}, err
	}
	interval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return config.Provider{}, fmt.Errorf("invalid poll interval %q", intervalStr)
	}

	return config.Provider{
		Name:         name,
		FeedURL:      feedURL,
		PollInterval: interval,
	}, nil
}
