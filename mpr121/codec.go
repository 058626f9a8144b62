package mpr121

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// snapshotEncMode produces deterministic CBOR so identical snapshots encode
// to identical bytes.
var snapshotEncMode cbor.EncMode

var snapshotDecMode cbor.DecMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	snapshotEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	snapshotDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// EncodeSnapshot encodes a snapshot as a CBOR array of 12 electrode maps.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(snap)
}

// NewSnapshotEncoder returns an encoder writing a stream of snapshots to w.
func NewSnapshotEncoder(w io.Writer) *cbor.Encoder {
	return snapshotEncMode.NewEncoder(w)
}

// NewSnapshotDecoder reads a stream written by NewSnapshotEncoder.
// Duplicate map keys and indefinite-length items are rejected.
func NewSnapshotDecoder(r io.Reader) *cbor.Decoder {
	return snapshotDecMode.NewDecoder(r)
}
