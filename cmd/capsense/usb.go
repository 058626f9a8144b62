package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/mklimuk/capsense/adapter"
	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/urfave/cli/v2"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "list USB HID devices",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		return listDevices(console.Writer(), hid.Enumerate(0, 0))
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "show attached adapters capsense can drive",
	Action: func(c *cli.Context) error {
		found := detectAdapters(console.Writer(), hid.Enumerate(0, 0))
		if found == 0 {
			console.Warnf("no supported adapter found")
		}
		return nil
	},
}

var knownAdapters = map[string][2]uint16{
	"MCP2221": {adapter.VendorID, adapter.ProductID},
}

func listDevices(w io.Writer, devices []hid.DeviceInfo) error {
	tw := tabwriter.NewWriter(w, 24, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(tw, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
	for _, dev := range devices {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
			dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
	}
	return tw.Flush()
}

func detectAdapters(w io.Writer, devices []hid.DeviceInfo) int {
	tw := tabwriter.NewWriter(w, 24, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(tw, "VENDOR\tPRODUCT\tADAPTER\tPATH\n")
	found := 0
	for _, dev := range devices {
		for name, ids := range knownAdapters {
			if ids[0] == dev.VendorID && ids[1] == dev.ProductID {
				_, _ = fmt.Fprintf(tw, "%#x\t%#x\t%s\t%s\n", dev.VendorID, dev.ProductID, name, dev.Path)
				found++
			}
		}
	}
	_ = tw.Flush()
	return found
}
