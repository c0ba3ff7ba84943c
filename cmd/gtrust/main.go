// Copyright 2024 The go-trustnet Authors
// This file is part of go-trustnet.
//
// go-trustnet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-trustnet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-trustnet. If not, see <http://www.gnu.org/licenses/>.

// gtrust is the command-line entry point for the trust registry server.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"

	"github.com/trustnet/go-trustnet/core"
	"github.com/trustnet/go-trustnet/core/rawdb"
	"github.com/trustnet/go-trustnet/internal/trustapi"
	"github.com/trustnet/go-trustnet/params"
)

const clientIdentifier = "gtrust"

var (
	app = cli.NewApp()

	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the registry database",
		Value: defaultDataDir(),
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "Network label scoping derived identifiers and delegation proofs",
		Value: "mainnet",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Usage: "Megabytes of memory allocated to database caching",
		Value: 64,
	}
	httpAddrFlag = cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP API listening interface",
		Value: "127.0.0.1",
	}
	httpPortFlag = cli.IntFlag{
		Name:  "http.port",
		Usage: "HTTP API listening port",
		Value: 8560,
	}
	httpCORSFlag = cli.StringSliceFlag{
		Name:  "http.corsdomain",
		Usage: "Comma separated list of domains from which to accept cross origin requests",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
)

var serverFlags = []cli.Flag{
	configFileFlag,
	dataDirFlag,
	networkFlag,
	cacheFlag,
	httpAddrFlag,
	httpPortFlag,
	httpCORSFlag,
	verbosityFlag,
}

func init() {
	app.Name = clientIdentifier
	app.Usage = "trust registry server"
	app.Version = params.VersionWithMeta
	app.Action = runServer
	app.Flags = serverFlags
	app.Commands = []cli.Command{
		dumpConfigCommand,
		inspectCommand,
		versionCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Before = func(ctx *cli.Context) error {
		setupLogger(ctx.GlobalInt(verbosityFlag.Name))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(verbosity int) {
	usecolor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	output := io.Writer(os.Stderr)
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	glogger := log.NewGlogHandler(log.StreamHandler(output, log.TerminalFormat(usecolor)))
	glogger.Verbosity(log.Lvl(verbosity))
	log.Root().SetHandler(glogger)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.gtrust"
}

// fatalf logs the formatted message and terminates.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

func openDatabase(cfg *gtrustConfig) rawdb.Database {
	if cfg.Registry.DataDir == "" {
		log.Warn("No data directory configured, state will not persist")
		return nil
	}
	db, err := rawdb.NewLevelDBDatabase(cfg.Registry.DataDir, cfg.Registry.Cache)
	if err != nil {
		fatalf("Failed to open registry database: %v", err)
	}
	return db
}

func runServer(ctx *cli.Context) error {
	if args := ctx.Args(); len(args) > 0 {
		return fmt.Errorf("invalid command: %q", args[0])
	}
	cfg := makeConfig(ctx)

	db := openDatabase(&cfg)
	if db != nil {
		defer db.Close()
	}
	backbone := core.NewBackbone(db, cfg.Registry.Network)
	log.Info("Registry state loaded",
		"network", cfg.Registry.Network,
		"agents", backbone.Identity.AgentCount())

	server := trustapi.NewServer(backbone, cfg.API)
	if err := server.Start(cfg.API.Host, cfg.API.Port); err != nil {
		fatalf("Failed to start HTTP API: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("Shutting down", "signal", s)
	server.Stop()
	return nil
}

var versionCommand = cli.Command{
	Action:    version,
	Name:      "version",
	Usage:     "Print version numbers",
	ArgsUsage: " ",
	Category:  "MISCELLANEOUS COMMANDS",
}

func version(ctx *cli.Context) error {
	fmt.Println(clientIdentifier)
	fmt.Println("Version:", params.VersionWithMeta)
	return nil
}
