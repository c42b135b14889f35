package flush

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// ErrPersistenceFailure wraps store errors surfaced through the worker.
// In-memory state is never rolled back on this error; the dirty records
// stay pending for the next retry cycle.
var ErrPersistenceFailure = errors.New("persistence failure")

// Kind identifies what a flush request carries.
type Kind int

const (
	KindAccount Kind = iota
	KindShopUpsert
	KindShopDelete
	KindListingUpsert
	KindListingDelete
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindShopUpsert:
		return "shop_upsert"
	case KindShopDelete:
		return "shop_delete"
	case KindListingUpsert:
		return "listing_upsert"
	case KindListingDelete:
		return "listing_delete"
	case KindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Request is one pending write-back. Exactly one payload field is set,
// selected by Kind.
type Request struct {
	Kind Kind

	Account     model.Account
	Shop        model.SignShop
	Listing     model.PlayerListing
	Transaction model.TransactionRecord
	DeleteID    uuid.UUID

	// Done, if set, is invoked once the record is durably written. A newer
	// write for the same record supersedes both the payload and the callback.
	// Only account requests carry callbacks today.
	Done func()
}

// Config holds flush worker settings.
type Config struct {
	BatchSize       int
	FlushInterval   time.Duration
	BufferSize      int
	MaxRetries      int
	RetryBaseDelay  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       500,
		FlushInterval:   1 * time.Second,
		BufferSize:      10000,
		MaxRetries:      5,
		RetryBaseDelay:  250 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Metrics counts worker activity.
type Metrics struct {
	Flushes  int64
	Writes   int64
	Retries  int64
	Dropped  int64
	Failures int64
}
