// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/kindred/internal/ranking"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// runCommand performs a full discovery run against Spotify
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Discover candidate tracks from seed artists and publish the closest matches",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringSliceFlag{
				Name:    "seed",
				Aliases: []string{"s"},
				Usage:   "Seed artist name (repeatable, overrides discovery.seeds)",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name (overrides playlist.name)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of tracks to publish (overrides discovery.playlist_size)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Rank candidates without creating a playlist",
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Write the ranking to a .csv or .json file",
			},
			&cli.StringFlag{
				Name:  "save-features",
				Usage: "Save the feature table as JSON for offline re-ranking",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print feature statistics and group comparison",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress output",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: r.Run,
	}
}

// rankCommand re-ranks a saved feature table without touching the network
func rankCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rank",
		Usage: "Re-rank a saved feature table offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Feature table written by run --save-features",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of tracks to select",
				Value:   ranking.DefaultLimit,
			},
			&cli.IntFlag{
				Name:    "neighbors",
				Aliases: []string{"k"},
				Usage:   "Neighbour rank used for the similarity score",
				Value:   ranking.DefaultNeighbors,
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of ranked tracks to print (0 prints all)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Write the ranking to a .csv or .json file",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print feature statistics and group comparison",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the ranking as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Rank,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigInit,
			},
		},
	}
}
