/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/hyperledger-labs/globalconf/config"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"
)

var help = map[string]string{
	"generate": "assemble the shared parameters once and publish them",
	"serve":    "publish the shared parameters periodically and serve metrics",
	"show":     "show a document stored in the configuration directory",
	"files":    "list the configuration files of the directory",
	"verify":   "validate every document stored in the configuration directory",
	"seed":     "load registry content from a YAML fixture",
	"history":  "list the published generations",
	"version":  "show version information",
}

type CLI struct {
	app      *kingpin.Application
	commands map[string]*kingpin.CmdClause
	out      io.Writer
	ctx      context.Context

	configPath *string
	// show command flags
	showInstance *string
	showKind     *string
	// seed command flags
	fixturePath *string
	// history command flags
	historyFrom  *uint64
	historyLimit *int
}

func NewCLI(out io.Writer) *CLI {
	app := kingpin.New("globalconf", "Builds and publishes the global configuration of a federation instance")
	cli := &CLI{app: app, out: out, ctx: context.Background()}
	cli.configureCommands()
	return cli
}

func (cli *CLI) configureCommands() {
	cli.configPath = cli.app.Flag("config", "The local configuration file").Short('c').String()

	commands := make(map[string]*kingpin.CmdClause)
	for _, name := range []string{"generate", "serve", "files", "verify", "version"} {
		commands[name] = cli.app.Command(name, help[name])
	}

	show := cli.app.Command("show", help["show"])
	cli.showInstance = show.Flag("instance", "The instance identifier; defaults to the home instance").String()
	cli.showKind = show.Flag("kind", "The document kind").Default("shared").Enum("shared", "private")
	commands["show"] = show

	seed := cli.app.Command("seed", help["seed"])
	cli.fixturePath = seed.Flag("fixture", "The YAML fixture to load").Required().ExistingFile()
	commands["seed"] = seed

	history := cli.app.Command("history", help["history"])
	cli.historyFrom = history.Flag("from", "The first sequence to list").Default("0").Uint64()
	cli.historyLimit = history.Flag("limit", "The maximal number of generations to list; 0 lists all").Default("0").Int()
	commands["history"] = history

	cli.commands = commands
}

// Run parses args and executes the selected command.
func (cli *CLI) Run(args []string) error {
	command, err := cli.app.Parse(args)
	if err != nil {
		return err
	}

	if command == cli.commands["version"].FullCommand() {
		printVersion(cli.out)
		return nil
	}

	conf, err := cli.loadConfig()
	if err != nil {
		return err
	}

	switch command {
	case cli.commands["generate"].FullCommand():
		return cli.generate(conf)
	case cli.commands["serve"].FullCommand():
		ctx, stop := signal.NotifyContext(cli.ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.serve(ctx, conf)
	case cli.commands["show"].FullCommand():
		return cli.show(conf, *cli.showInstance, *cli.showKind)
	case cli.commands["files"].FullCommand():
		return cli.files(conf)
	case cli.commands["verify"].FullCommand():
		return cli.verify(conf)
	case cli.commands["seed"].FullCommand():
		return cli.seed(conf, *cli.fixturePath)
	case cli.commands["history"].FullCommand():
		return cli.history(conf, *cli.historyFrom, *cli.historyLimit)
	}
	return errors.Errorf("command %s doesn't exist", command)
}

func (cli *CLI) loadConfig() (*config.LocalConfig, error) {
	if *cli.configPath == "" {
		return nil, errors.New("config parameter missing")
	}
	conf, err := config.Load(*cli.configPath)
	if err != nil {
		return nil, err
	}
	flogging.ActivateSpec(conf.GeneralConfig.LogSpec)
	return conf, nil
}

func printVersion(out io.Writer) {
	version := "unknown"
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = bi.Main.Version
	}
	fmt.Fprintf(out, "globalconf version is: %s\n", version)
}
