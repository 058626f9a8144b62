package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mklimuk/capsense/cmd/capsense/console"
	"github.com/mklimuk/capsense/mpr121"
	"gopkg.in/yaml.v3"
)

const (
	formatTable  = "table"
	formatYAML   = "yaml"
	formatCBOR   = "cbor"
	formatEvents = "events"
)

// pollWriter receives every snapshot taken by watch.
type pollWriter func(mpr121.Snapshot) error

func newPollWriter(w io.Writer, format string) (pollWriter, error) {
	switch format {
	case formatEvents:
		return func(snap mpr121.Snapshot) error {
			writeEvents(w, snap)
			return nil
		}, nil
	case formatCBOR:
		enc := mpr121.NewSnapshotEncoder(w)
		return func(snap mpr121.Snapshot) error {
			return enc.Encode(snap)
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown stream format %q", mpr121.ErrInvalidArgument, format)
}

// decodeStream reads CBOR snapshots from r until EOF and prints each one. It
// returns the number of snapshots decoded.
func decodeStream(r io.Reader, w io.Writer, format string) (int, error) {
	if format != formatEvents && format != formatTable && format != formatYAML {
		return 0, fmt.Errorf("%w: unknown format %q", mpr121.ErrInvalidArgument, format)
	}
	dec := mpr121.NewSnapshotDecoder(r)
	n := 0
	for {
		var snap mpr121.Snapshot
		err := dec.Decode(&snap)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if format == formatEvents {
			writeEvents(w, snap)
			continue
		}
		if err := writeSnapshot(w, format, snap); err != nil {
			return n, err
		}
	}
}

func writeSnapshot(w io.Writer, format string, snap mpr121.Snapshot) error {
	switch format {
	case formatTable:
		return writeSnapshotTable(w, snap)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap[:]); err != nil {
			return fmt.Errorf("could not encode snapshot: %w", err)
		}
		return enc.Close()
	case formatCBOR:
		data, err := mpr121.EncodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("could not encode snapshot: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("%w: unknown format %q", mpr121.ErrInvalidArgument, format)
}

func writeSnapshotTable(w io.Writer, snap mpr121.Snapshot) error {
	tw := tabwriter.NewWriter(w, 4, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ELECTRODE\tTOUCHED\tEDGE\tFILTERED\tBASELINE\tDELTA\tTOUCH TH\tRELEASE TH\n")
	for _, e := range snap {
		touched := "-"
		if e.Touched {
			touched = "yes"
		}
		edge := "-"
		switch {
		case e.NewTouch:
			edge = "touch"
		case e.NewRelease:
			edge = "release"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			e.Index, touched, edge, e.Filtered, e.Baseline,
			int(e.Baseline)-int(e.Filtered), e.TouchThreshold, e.ReleaseThreshold)
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, snap mpr121.Snapshot) {
	for _, ev := range snap.Events() {
		switch ev.Kind {
		case mpr121.TouchEvent:
			_, _ = fmt.Fprintf(w, "%s electrode %s %s\n", console.PictoTouch, console.White(ev.Electrode), console.Green(ev.Kind))
		case mpr121.ReleaseEvent:
			_, _ = fmt.Fprintf(w, "%s electrode %s %s\n", console.PictoRelease, console.White(ev.Electrode), console.Yellow(ev.Kind))
		}
	}
}
