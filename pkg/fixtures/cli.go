package fixtures

import (
	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "fixtures",
		Usage: "Seed data for signals, hospitals and incidents",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "parse and print the fixture directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "fixtures",
						Value: "data/fixtures",
						Usage: "directory containing signals.csv, hospitals.yaml and incidents.yaml",
					},
				},
				Action: func(c *cli.Context) error {
					set, err := Load(c.String("fixtures"))
					if err != nil {
						return err
					}

					pretty.Println(set)

					return nil
				},
			},
		},
	}
}
