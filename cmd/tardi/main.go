package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/tardi-lang/tardi"
	"github.com/tardi-lang/tardi/internal/config"
	"github.com/tardi-lang/tardi/internal/repl"
)

func main() {
	app := cli.NewApp()
	app.Name = "tardi"
	app.Usage = "a stack-based concatenative programming language"
	app.ArgsUsage = "[script]"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "TOML configuration file",
		},
		cli.BoolFlag{
			Name:  "print-stack",
			Usage: "print the final data stack to standard output",
		},
		cli.IntFlag{
			Name:  "verbosity",
			Usage: "logging verbosity: 0=error, 1=warn, 2=info, 3=debug, 4=trace",
			Value: 1,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "init-config",
			Usage: "write the default configuration file",
			Action: func(*cli.Context) error {
				file, err := config.InitDefault()
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				fmt.Println(file)
				return nil
			},
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	setVerbosity(ctx.Int("verbosity"))

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	interp, err := tardi.New(tardi.WithModulePaths(cfg.ModulePath))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if ctx.NArg() == 0 {
		if err := repl.New(interp, cfg.REPL).Run(); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}

	if err := interp.ExecuteFile(ctx.Args().First()); err != nil && !errors.Is(err, tardi.ErrBye) {
		return cli.NewExitError(err.Error(), 1)
	}
	if ctx.Bool("print-stack") {
		for _, v := range interp.Stack() {
			fmt.Println(v.Repr())
		}
	}
	return nil
}

func setVerbosity(level int) {
	switch {
	case level <= 0:
		log.SetLevel(log.ErrorLevel)
	case level == 1:
		log.SetLevel(log.WarnLevel)
	case level == 2:
		log.SetLevel(log.InfoLevel)
	case level == 3:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.TraceLevel)
	}
}
