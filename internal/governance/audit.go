package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// zeroHash is 64 zero characters, matching sha256's hex output width; the
// genesis entry's predecessor.
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one tamper-evident audit log record. EntryHash is computed over
// PreviousHash and the canonical JSON bytes of every other field, so any
// alteration of a past entry (including a silent field edit) breaks the
// chain from that point forward.
type Entry struct {
	Sequence      int64
	TenantID      string
	Actor         string
	Action        string
	ResourceType  string
	ResourceID    string
	Detail        map[string]interface{}
	PreviousHash  string
	EntryHash     string
}

// canonicalBytes serializes the hashed fields deterministically.
// encoding/json sorts map keys, so Detail's key order never affects the
// hash. PreviousHash and EntryHash are excluded: PreviousHash is hashed in
// separately (prepended), and EntryHash is the output being computed.
func canonicalBytes(e Entry) ([]byte, error) {
	return json.Marshal(struct {
		Sequence     int64                  `json:"sequence"`
		TenantID     string                 `json:"tenant_id"`
		Actor        string                 `json:"actor"`
		Action       string                 `json:"action"`
		ResourceType string                 `json:"resource_type"`
		ResourceID   string                 `json:"resource_id"`
		Detail       map[string]interface{} `json:"detail"`
	}{e.Sequence, e.TenantID, e.Actor, e.Action, e.ResourceType, e.ResourceID, e.Detail})
}

// computeHash derives an entry's hash from its predecessor's hash and its
// own canonical bytes: sha256(previous_hash || canonical_bytes(entry)).
func computeHash(previousHash string, e Entry) (string, error) {
	canonical, err := canonicalBytes(e)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Chain is an append-only, hash-linked sequence of audit entries for one
// tenant. Entries are never updated or deleted once appended.
type Chain struct {
	entries []Entry
}

// NewChain constructs an empty Chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append adds a new entry, computing its hash against the current tail
// (or the zero hash for the genesis entry) and assigning the next
// sequence number.
func (c *Chain) Append(e Entry) (Entry, error) {
	previous := zeroHash
	e.Sequence = 1
	if len(c.entries) > 0 {
		tail := c.entries[len(c.entries)-1]
		previous = tail.EntryHash
		e.Sequence = tail.Sequence + 1
	}
	e.PreviousHash = previous

	hash, err := computeHash(previous, e)
	if err != nil {
		return Entry{}, ironerrors.Unexpected(err)
	}
	e.EntryHash = hash

	c.entries = append(c.entries, e)
	return e, nil
}

// Entries returns every entry in append order.
func (c *Chain) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Verify re-derives every entry's hash from its predecessor and content,
// returning an Integrity ServiceError naming the first entry (by sequence
// number) whose recorded hash does not match the re-derivation.
func (c *Chain) Verify() error {
	previous := zeroHash
	for _, e := range c.entries {
		if e.PreviousHash != previous {
			return ironerrors.Integrity(fmt.Sprintf("entry %d: previous_hash mismatch", e.Sequence))
		}
		expected, err := computeHash(previous, Entry{
			Sequence: e.Sequence, TenantID: e.TenantID, Actor: e.Actor, Action: e.Action,
			ResourceType: e.ResourceType, ResourceID: e.ResourceID, Detail: e.Detail,
		})
		if err != nil {
			return ironerrors.Unexpected(err)
		}
		if expected != e.EntryHash {
			return ironerrors.Integrity(fmt.Sprintf("entry %d: entry_hash mismatch", e.Sequence))
		}
		previous = e.EntryHash
	}
	return nil
}
