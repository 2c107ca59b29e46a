package securityaudit

import (
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrChainBroken is returned by Verify when an event was altered or removed
// from the middle of the retained log.
var ErrChainBroken = errors.New("audit chain broken")

// hashEvent computes the chain hash of e over PrevHash and every recorded
// field. Hash itself is ignored.
func hashEvent(e SecurityEvent) string {
	var b strings.Builder
	field := func(v string) {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	field(e.PrevHash)
	field(e.ID)
	field(e.Timestamp.UTC().Format(time.RFC3339Nano))
	field(string(e.Type))
	field(e.ActorID)
	field(e.ActorRole)
	field(e.Action)
	field(e.Resource)
	field(string(e.Result))
	field(string(e.RiskLevel))
	field(e.Details.IP)
	field(e.Details.UserAgent)
	field(e.Details.Browser)
	field(e.Details.OS)
	field(e.Details.RequestedPermission)
	field(e.Details.TargetResource)
	field(e.Details.Reason)
	keys := slices.Sorted(maps.Keys(e.Details.Extra))
	for _, k := range keys {
		field(k)
		field(e.Details.Extra[k])
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that every event hashes to its stored Hash and links
// to its predecessor. The first event's PrevHash is taken on trust, since
// its predecessor may have been evicted.
func VerifyChain(events []SecurityEvent) error {
	for i, e := range events {
		if hashEvent(e) != e.Hash {
			return fmt.Errorf("%w: event %s does not match its hash", ErrChainBroken, e.ID)
		}
		if i > 0 && e.PrevHash != events[i-1].Hash {
			return fmt.Errorf("%w: event %s does not follow %s", ErrChainBroken, e.ID, events[i-1].ID)
		}
	}
	return nil
}
