package lightclient

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"google.golang.org/protobuf/encoding/protowire"
)

// RoundTripSyncCommittee encodes sc to the wire shape the
// union.ibc.lightclients.ethereum.v1.SyncCommittee message assigns its
// fields (1: repeated bytes pubkeys, 2: bytes aggregate_pubkey), decodes
// it back, and validates cardinality/point form on the decoded value.
//
// This is the "fallible protobuf round-trip" spec.md §4.D step 10 and §9
// describe: it exists to reject malformed committees at the relay side
// rather than on-chain. We do not depend on generated protobuf code for
// this (see DESIGN.md) — the two fields are simple enough to encode with
// google.golang.org/protobuf/encoding/protowire directly.
func RoundTripSyncCommittee(sc SyncCommittee, expectedSize int) (SyncCommittee, error) {
	wire := marshalSyncCommittee(sc)
	decoded, err := unmarshalSyncCommittee(wire)
	if err != nil {
		return SyncCommittee{}, fmt.Errorf("lightclient: sync committee round-trip decode: %w", err)
	}
	if err := decoded.Validate(expectedSize); err != nil {
		return SyncCommittee{}, err
	}
	return decoded, nil
}

func marshalSyncCommittee(sc SyncCommittee) []byte {
	var b []byte
	for _, pk := range sc.Pubkeys {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, pk[:])
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, sc.AggregatePubkey[:])
	return b
}

func unmarshalSyncCommittee(b []byte) (SyncCommittee, error) {
	var sc SyncCommittee
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return SyncCommittee{}, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			return SyncCommittee{}, fmt.Errorf("field %d: unexpected wire type %d", num, typ)
		}
		val, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return SyncCommittee{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case 1:
			var pk phase0.BLSPubKey
			if len(val) != len(pk) {
				return SyncCommittee{}, fmt.Errorf("field 1: pubkey has %d bytes, want %d", len(val), len(pk))
			}
			copy(pk[:], val)
			sc.Pubkeys = append(sc.Pubkeys, pk)
		case 2:
			if len(val) != len(sc.AggregatePubkey) {
				return SyncCommittee{}, fmt.Errorf("field 2: aggregate pubkey has %d bytes, want %d", len(val), len(sc.AggregatePubkey))
			}
			copy(sc.AggregatePubkey[:], val)
		default:
			// unknown field, ignore
		}
	}
	return sc, nil
}
