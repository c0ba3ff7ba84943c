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
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/trustnet/go-trustnet/core"
	"github.com/trustnet/go-trustnet/params"
)

var inspectCommand = cli.Command{
	Action:      inspect,
	Name:        "inspect",
	Usage:       "Inspect the registry database",
	ArgsUsage:   " ",
	Flags:       serverFlags,
	Category:    "MISCELLANEOUS COMMANDS",
	Description: `The inspect command prints aggregate statistics of the registry database.`,
}

func inspect(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	db := openDatabase(&cfg)
	if db != nil {
		defer db.Close()
	}
	backbone := core.NewBackbone(db, cfg.Registry.Network)

	var (
		agents, active  uint64
		feedback        uint64
		revoked         uint64
		requests        uint64
		pending         uint64
		incidents, open uint64
	)
	agents = backbone.Identity.AgentCount()
	for id := uint64(params.FirstAgentID); id < params.FirstAgentID+agents; id++ {
		if isActive, err := backbone.Identity.IsActive(id); err == nil && isActive {
			active++
		}
		summary, err := backbone.Reputation.Summary(id, nil, "", "")
		if err == nil {
			feedback += summary.Total
			revoked += summary.Revoked
		}
		vsummary, err := backbone.Validation.Summary(id, nil, "")
		if err == nil {
			requests += vsummary.Total
			pending += vsummary.Pending
		}
		isummary, err := backbone.Incident.Summary(id)
		if err == nil {
			incidents += isummary.Total
			open += isummary.Open
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Record", "Total", "Detail"})
	table.AppendBulk([][]string{
		{"Agents", strconv.FormatUint(agents, 10), strconv.FormatUint(active, 10) + " active"},
		{"Feedback", strconv.FormatUint(feedback, 10), strconv.FormatUint(revoked, 10) + " revoked"},
		{"Validation requests", strconv.FormatUint(requests, 10), strconv.FormatUint(pending, 10) + " pending"},
		{"Incidents", strconv.FormatUint(incidents, 10), strconv.FormatUint(open, 10) + " open"},
	})
	table.Render()
	return nil
}
