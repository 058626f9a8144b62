package main

import (
	"context"
	"io"

	"github.com/mklimuk/capsense/adapter"
	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect the MCP2221 USB-I2C bridge",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the bridge I2C engine status",
	Action: func(c *cli.Context) error {
		return printBridgeStatus(commandContext(c), console.Writer(), adapter.NewMCP2221().Status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Action: func(c *cli.Context) error {
		return printBridgeStatus(commandContext(c), console.Writer(), adapter.NewMCP2221().ReleaseBus)
	},
}

func printBridgeStatus(ctx context.Context, w io.Writer, query func(context.Context) (*adapter.MCP2221Status, error)) error {
	status, err := query(ctx)
	if err != nil {
		return console.Exit(console.ExitFailure, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Exit(console.ExitFailure, "encoding error: %s", console.Red(err))
	}
	return nil
}
