// Package idgen allocates sequential human-readable ids such as U001 or VA012.
package idgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"eventhub/internal/apperr"
	"eventhub/internal/docstore"
)

// Width is the minimum number of digits; larger sequence numbers simply use
// more digits.
const Width = 3

type Kind struct {
	Name       string
	Prefix     string
	Collection docstore.Collection
}

var (
	User             = Kind{Name: "user", Prefix: "U", Collection: docstore.Users}
	Event            = Kind{Name: "event", Prefix: "E", Collection: docstore.Events}
	Guest            = Kind{Name: "guest", Prefix: "G", Collection: docstore.Guests}
	Message          = Kind{Name: "message", Prefix: "M", Collection: docstore.Messages}
	Budget           = Kind{Name: "budget", Prefix: "B", Collection: docstore.Budgets}
	VendorProfile    = Kind{Name: "vendor_profile", Prefix: "V", Collection: docstore.VendorProfiles}
	VendorAssignment = Kind{Name: "vendor_assignment", Prefix: "VA", Collection: docstore.VendorAssignments}
)

func Format(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, Width, n)
}

// Parse returns the sequence number of id when it is exactly prefix followed
// by decimal digits. "VA001" does not parse under prefix "V".
func Parse(prefix, id string) (int, bool) {
	digits, ok := strings.CutPrefix(id, prefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate reports an InvalidIdFormat error for ids that could never have
// been allocated for k.
func Validate(k Kind, id string) error {
	if _, ok := Parse(k.Prefix, id); !ok {
		return apperr.InvalidID(id)
	}
	return nil
}

// MaxSequence is the largest sequence number among ids carrying prefix.
// Other ids are returned as skipped.
func MaxSequence(prefix string, ids []string) (highest int, skipped []string) {
	for _, id := range ids {
		n, ok := Parse(prefix, id)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, skipped
}

type Allocator struct {
	log *zerolog.Logger
}

func New(log *zerolog.Logger) *Allocator {
	return &Allocator{log: log}
}

// Next allocates the next id of k inside tx. The stored counter is raised to
// at least the highest existing id first, so data imported without going
// through the counter never collides with new ids.
func (a *Allocator) Next(ctx context.Context, tx docstore.Tx, k Kind) (string, error) {
	ids, err := tx.IDs(ctx, k.Collection)
	if err != nil {
		return "", fmt.Errorf("scan %s ids: %w", k.Name, err)
	}
	floor, skipped := MaxSequence(k.Prefix, ids)
	if len(skipped) > 0 && a.log != nil {
		a.log.Warn().
			Str("kind", k.Name).
			Strs("ids", skipped).
			Msg("ignoring ids that do not match the kind prefix")
	}
	n, err := tx.NextSequence(ctx, k.Name, floor)
	if err != nil {
		return "", fmt.Errorf("allocate %s id: %w", k.Name, err)
	}
	return Format(k.Prefix, n), nil
}
