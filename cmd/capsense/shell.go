package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/mklimuk/capsense/mpr121"
	"github.com/mklimuk/capsense/mpr121/binding"
	"github.com/urfave/cli/v2"
)

var touchShellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive session calling driver methods by name",
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		profile, err := loadProfile(c)
		if err != nil {
			return exitError("could not load profile", err)
		}
		address, err := deviceAddress(c, profile)
		if err != nil {
			return exitError("invalid address", err)
		}
		bus, closeBus, err := openBus(c, address)
		if err != nil {
			return exitError("could not open bus", err)
		}
		defer closeBus()
		session, err := binding.Construct(ctx, bus, fmt.Sprintf("%x", address))
		if session == nil {
			return exitError("could not open device", err)
		}
		defer func() { _ = session.Device().Close(ctx) }()
		if err != nil {
			console.Warnf("handshake failed: %s; use reset to retry", err)
		} else if profile != nil {
			if err := profile.Apply(ctx, session.Device()); err != nil {
				console.Warnf("could not apply profile: %s", err)
			}
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          fmt.Sprintf("mpr121@%02x> ", address),
			AutoComplete:    shellCompleter(),
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return exitError("could not start shell", err)
		}
		defer func() { _ = rl.Close() }()
		return runShell(ctx, session, rl, rl.Stdout(), console.Confirm)
	},
}

func shellCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, m := range binding.Methods() {
		items = append(items, readline.PcItem(m))
	}
	return readline.NewPrefixCompleter(items...)
}

type lineReader interface {
	Readline() (string, error)
}

// runShell reads commands of the form "method arg..." and invokes them on
// the session until EOF or exit.
func runShell(ctx context.Context, session *binding.Session, rl lineReader, out io.Writer, confirm func(string) (bool, error)) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		method := fields[0]
		switch method {
		case "exit", "quit":
			return nil
		case "help":
			_, _ = fmt.Fprintf(out, "methods: %s\n", strings.Join(binding.Methods(), ", "))
			continue
		case binding.MethodReset:
			ok, err := confirm("reset the chip and restore default configuration?")
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		args := make([]any, len(fields)-1)
		for i, f := range fields[1:] {
			args[i] = f
		}
		res, err := session.Invoke(ctx, method, args...)
		if err != nil {
			_, _ = fmt.Fprintf(out, "%s: %s\n", console.Red("ERROR"), err)
			continue
		}
		printResult(out, res)
	}
}

func printResult(out io.Writer, res any) {
	switch v := res.(type) {
	case nil:
		_, _ = fmt.Fprintln(out, console.Green("ok"))
	case mpr121.Snapshot:
		_ = writeSnapshotTable(out, v)
		writeEvents(out, v)
	default:
		_, _ = fmt.Fprintln(out, console.White(v))
	}
}
