package cluster

import (
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/lrc-coordinator/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	keyRackPrefix   = "rack:"
	keyFilePrefix   = "file:"
	keyStripePrefix = "stripe:"
	keyGateway      = "gateway"
)

// Meta is the Topology & Metadata Service (spec.md §2): an in-memory
// (buntdb ":memory:") indexed store for racks, nodes, and the
// file->stripe->block graph, plus the hot/cold flag and reserved
// fast-parity shadow set. Disk persistence is an external collaborator
// (spec.md §1) — this store never survives a process restart, by design.
type Meta struct {
	mu     sync.Mutex // serializes Commit against concurrent Snapshot reads of a consistent multi-key view
	db     *buntdb.DB
	schema Schema
}

// NewMeta opens an in-memory metadata store for the given schema.
func NewMeta(schema Schema) (*Meta, error) {
	if err := schema.Validate(); err != nil {
		return nil, cmn.Wrap(err, "metadata service")
	}
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, cmn.Wrap(err, "metadata service: open buntdb")
	}
	return &Meta{db: db, schema: schema}, nil
}

// Close releases the in-memory store.
func (m *Meta) Close() error { return m.db.Close() }

// SetGateway records the single cross-rack relay node (spec.md §4.4).
func (m *Meta) SetGateway(node string) error {
	return m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyGateway, node, nil)
		return err
	})
}

// AddRack registers a rack and its nodes at startup. Topology changes
// outside of startup (rebalancing) are out of scope (spec.md §3).
func (m *Meta) AddRack(id string, nodes ...string) error {
	r := Rack{ID: id, Nodes: append([]string(nil), nodes...)}
	buf, err := json.Marshal(r)
	if err != nil {
		return cmn.Wrap(err, "metadata service: marshal rack")
	}
	return m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyRackPrefix+id, string(buf), nil)
		return err
	})
}

// Snapshot returns a detached, value-typed view of the whole store, giving
// every kernel-routine invocation snapshot-at-entry semantics (spec.md §5).
func (m *Meta) Snapshot() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Schema:   m.schema,
		Topology: NewTopology(),
		Files:    make(map[string]File),
		Stripes:  make(map[string]Stripe),
	}
	err := m.db.View(func(tx *buntdb.Tx) error {
		if v, err := tx.Get(keyGateway); err == nil {
			snap.Gateway = v
		} else if err != buntdb.ErrNotFound {
			return err
		}
		return tx.Ascend("", func(key, value string) bool {
			switch {
			case strings.HasPrefix(key, keyRackPrefix):
				var r Rack
				if jerr := json.UnmarshalFromString(value, &r); jerr != nil {
					err = jerr
					return false
				}
				snap.Topology.AddRack(r.ID, r.Nodes...)
			case strings.HasPrefix(key, keyFilePrefix):
				var f File
				if jerr := json.UnmarshalFromString(value, &f); jerr != nil {
					err = jerr
					return false
				}
				snap.Files[f.Name] = f
			case strings.HasPrefix(key, keyStripePrefix):
				var st Stripe
				if jerr := json.UnmarshalFromString(value, &st); jerr != nil {
					err = jerr
					return false
				}
				snap.Stripes[st.ID] = st
			}
			return true
		})
	})
	if err != nil {
		return Snapshot{}, cmn.Wrap(err, "metadata service: snapshot")
	}
	return snap, nil
}

// Update is the mutation record COMMIT applies atomically (spec.md §4.7).
// Every kernel routine builds one of these during PLAN/DISPATCH and hands
// it to Meta.Commit only after every required ack has arrived — never
// before (design note: "mutations returned as an update record applied
// atomically on commit").
type Update struct {
	PutFile    *File    // create or overwrite a file record
	PutStripes []Stripe // create or overwrite stripe records (including their Blocks)
}

// Commit applies u in one buntdb transaction. ABORT (spec.md §4.7) is
// simply "don't call Commit" — the stripe state is left whichever it was
// on entry.
func (m *Meta) Commit(u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Update(func(tx *buntdb.Tx) error {
		if u.PutFile != nil {
			buf, err := json.Marshal(*u.PutFile)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(keyFilePrefix+u.PutFile.Name, string(buf), nil); err != nil {
				return err
			}
		}
		for _, st := range u.PutStripes {
			buf, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(keyStripePrefix+st.ID, string(buf), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// StripeIDOfBlock recovers a stripe ID from a block ID of the form
// "<FileName>-<StripeSeq4>-<BlockSeq2>" (spec.md §6), by trimming the
// trailing "-NN" field — never by arithmetic on the string (design note).
func StripeIDOfBlock(blockID string) (string, error) {
	idx := strings.LastIndex(blockID, "-")
	if idx < 0 {
		return "", fmt.Errorf("malformed block id %q", blockID)
	}
	stripeID := blockID[:idx]
	if err := cmn.ValidateStripeID(stripeID); err != nil {
		return "", err
	}
	return stripeID, nil
}
