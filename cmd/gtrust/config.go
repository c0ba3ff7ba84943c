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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/trustnet/go-trustnet/internal/trustapi"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "",
		Flags:       serverFlags,
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type registryConfig struct {
	DataDir string
	Network string
	Cache   int
}

type gtrustConfig struct {
	Registry registryConfig
	API      trustapi.Config
}

func loadConfig(file string, cfg *gtrustConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig assembles the effective configuration: built-in defaults, then
// the optional TOML file, then command line flags.
func makeConfig(ctx *cli.Context) gtrustConfig {
	cfg := gtrustConfig{
		Registry: registryConfig{
			DataDir: dataDirFlag.Value,
			Network: networkFlag.Value,
			Cache:   cacheFlag.Value,
		},
		API: trustapi.Config{
			Host: httpAddrFlag.Value,
			Port: httpPortFlag.Value,
		},
	}
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			fatalf("%v", err)
		}
	}
	if ctx.GlobalIsSet(dataDirFlag.Name) {
		cfg.Registry.DataDir = ctx.GlobalString(dataDirFlag.Name)
	}
	if ctx.GlobalIsSet(networkFlag.Name) {
		cfg.Registry.Network = ctx.GlobalString(networkFlag.Name)
	}
	if ctx.GlobalIsSet(cacheFlag.Name) {
		cfg.Registry.Cache = ctx.GlobalInt(cacheFlag.Name)
	}
	if ctx.GlobalIsSet(httpAddrFlag.Name) {
		cfg.API.Host = ctx.GlobalString(httpAddrFlag.Name)
	}
	if ctx.GlobalIsSet(httpPortFlag.Name) {
		cfg.API.Port = ctx.GlobalInt(httpPortFlag.Name)
	}
	if ctx.GlobalIsSet(httpCORSFlag.Name) {
		cfg.API.CORSDomains = ctx.GlobalStringSlice(httpCORSFlag.Name)
	}
	return cfg
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)

	return nil
}
