package book

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/veillabs/veilbook/pkg/confidential"
)

// ErrNoLiquidity is returned by market orders when the opposite side of the
// book is empty. No order id is consumed and no state changes.
var ErrNoLiquidity = errors.New("book: no resting orders on the opposite side")

// ErrEncryptionUnavailable is returned when confidential mode is requested
// without usable key material.
var ErrEncryptionUnavailable = errors.New("book: confidential mode requires key material")

// Book is the single-asset matching engine. It holds the resting bids and
// asks, the append-only fill history, and the monotonic order id counter.
// One mutex guards the whole state for the duration of each operation, so
// matching, fill recording and resting insertion are atomic with respect to
// concurrent submissions.
//
// Bids are kept in descending price order and asks in ascending price order
// while they are plaintext-comparable. Confidential orders accumulate in
// arrival order instead, since their prices cannot be compared at rest; the
// matching scan visits them linearly.
type Book struct {
	mu sync.Mutex

	nextID uint64
	bids   []*Order
	asks   []*Order
	fills  []Fill

	confidential bool
	svc          confidential.Service

	log    *zap.SugaredLogger
	onFill func(Fill)
}

// Option configures a Book.
type Option func(*Book)

// WithLogger sets the book's logger. Defaults to a no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Book) { b.log = log }
}

// WithFillHook registers a callback invoked for every recorded fill. The
// hook runs while the book lock is held; keep it fast.
func WithFillHook(fn func(Fill)) Option {
	return func(b *Book) { b.onFill = fn }
}

// New creates an empty book in plaintext mode. svc may be nil for a book
// that will never enter confidential mode.
func New(svc confidential.Service, opts ...Option) *Book {
	b := &Book{
		svc: svc,
		log: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Confidential reports whether newly submitted orders are sealed.
func (b *Book) Confidential() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.confidential
}

// SetConfidential toggles the sealing policy for future submissions. Resting
// orders keep the representation they were created with. Enabling fails with
// ErrEncryptionUnavailable when no key material is loaded.
func (b *Book) SetConfidential(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enabled && (b.svc == nil || !b.svc.Ready()) {
		return ErrEncryptionUnavailable
	}
	b.confidential = enabled
	return nil
}

// Submit places a limit order, matches it against the opposite side and
// rests any remainder. The returned order is a confirmation copy; whether it
// filled or rested is visible through Fills and Orders.
func (b *Book) Submit(side Side, price, quantity uint32, owner string) (*Order, error) {
	if side != Buy && side != Sell {
		return nil, ErrInvalidSide
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitLocked(side, price, quantity, owner)
}

// MarketBuy submits a buy order that is eligible against every resting ask.
// Returns ErrNoLiquidity without consuming an id when the asks are empty.
func (b *Book) MarketBuy(quantity uint32, owner string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.asks) == 0 {
		return nil, ErrNoLiquidity
	}
	return b.submitLocked(Buy, math.MaxUint32, quantity, owner)
}

// MarketSell submits a sell order that is eligible against every resting
// bid. Returns ErrNoLiquidity without consuming an id when the bids are
// empty.
func (b *Book) MarketSell(quantity uint32, owner string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bids) == 0 {
		return nil, ErrNoLiquidity
	}
	return b.submitLocked(Sell, 0, quantity, owner)
}

func (b *Book) submitLocked(side Side, price, quantity uint32, owner string) (*Order, error) {
	b.nextID++
	o := newOrder(b.nextID, side, price, quantity, owner)

	if b.confidential {
		if err := b.sealLocked(o); err != nil {
			// Sealing failure degrades the order to plaintext matching,
			// surfaced as a warning rather than a reject.
			b.log.Warnw("order_seal_failed", "id", o.ID, "err", err)
		}
	}

	left, err := b.matchLocked(o, quantity)
	if err != nil {
		return nil, fmt.Errorf("match order %d: %w", o.ID, err)
	}

	if left > 0 {
		if err := b.restLocked(o, left); err != nil {
			return nil, fmt.Errorf("rest order %d: %w", o.ID, err)
		}
	} else if !o.Confidential {
		o.Remaining = 0
	}

	b.log.Infow("order_submitted",
		"id", o.ID,
		"side", side.String(),
		"owner", owner,
		"confidential", o.Confidential,
		"remaining", left)

	confirm := *o
	return &confirm, nil
}

// matchLocked consumes resting orders on the opposite side until the
// incoming order's remaining quantity is exhausted or no eligible maker is
// left. It returns the unmatched remainder.
func (b *Book) matchLocked(incoming *Order, remaining uint32) (uint32, error) {
	opposite := &b.asks
	if incoming.Side == Sell {
		opposite = &b.bids
	}

	i := 0
	for remaining > 0 && i < len(*opposite) {
		maker := (*opposite)[i]

		ok, err := b.eligibleLocked(incoming, maker)
		if err != nil {
			return remaining, err
		}
		if !ok {
			i++
			continue
		}

		makerPrice, makerLeft, err := b.makerViewLocked(maker)
		if err != nil {
			return remaining, err
		}

		match := remaining
		if makerLeft < match {
			match = makerLeft
		}
		newMakerLeft := makerLeft - match

		// Update the maker before recording the fill so a sealing failure
		// leaves the pairing untouched.
		if newMakerLeft == 0 {
			*opposite = append((*opposite)[:i], (*opposite)[i+1:]...)
		} else if maker.Confidential {
			ct, err := b.svc.Encrypt(newMakerLeft)
			if err != nil {
				return remaining, err
			}
			maker.EncryptedQuantity = ct
		} else {
			maker.Remaining = newMakerLeft
		}

		fill := Fill{Price: makerPrice, Quantity: match}
		if incoming.Side == Buy {
			fill.BuyOrderID, fill.Buyer = incoming.ID, incoming.Owner
			fill.SellOrderID, fill.Seller = maker.ID, maker.Owner
		} else {
			fill.BuyOrderID, fill.Buyer = maker.ID, maker.Owner
			fill.SellOrderID, fill.Seller = incoming.ID, incoming.Owner
		}
		b.fills = append(b.fills, fill)
		if b.onFill != nil {
			b.onFill(fill)
		}

		b.log.Infow("fill_recorded",
			"buy_order_id", fill.BuyOrderID,
			"sell_order_id", fill.SellOrderID,
			"price", fill.Price,
			"quantity", fill.Quantity)

		remaining -= match
	}
	return remaining, nil
}

// eligibleLocked applies the match rule: the buy side's price must be at
// least the sell side's price, whichever side the incoming order is on.
// When one operand is sealed and the other plaintext, the plaintext price is
// sealed on the fly so the comparison still runs through the service.
func (b *Book) eligibleLocked(incoming, maker *Order) (bool, error) {
	buy, sell := incoming, maker
	if incoming.Side == Sell {
		buy, sell = maker, incoming
	}

	switch {
	case !buy.Confidential && !sell.Confidential:
		return buy.Price >= sell.Price, nil
	case buy.Confidential && sell.Confidential:
		return b.svc.CompareGE(buy.EncryptedPrice, sell.EncryptedPrice)
	case buy.Confidential:
		ct, err := b.svc.Encrypt(sell.Price)
		if err != nil {
			return false, err
		}
		return b.svc.CompareGE(buy.EncryptedPrice, ct)
	default:
		ct, err := b.svc.Encrypt(buy.Price)
		if err != nil {
			return false, err
		}
		return b.svc.CompareGE(ct, sell.EncryptedPrice)
	}
}

// makerViewLocked returns a maker's execution price and remaining quantity,
// unsealing them for confidential makers. Fills are always recorded in
// plaintext.
func (b *Book) makerViewLocked(maker *Order) (uint32, uint32, error) {
	if !maker.Confidential {
		return maker.Price, maker.Remaining, nil
	}
	price, err := b.svc.Decrypt(maker.EncryptedPrice)
	if err != nil {
		return 0, 0, err
	}
	left, err := b.svc.Decrypt(maker.EncryptedQuantity)
	if err != nil {
		return 0, 0, err
	}
	return price, left, nil
}

// restLocked inserts the unmatched remainder into the order's own side.
func (b *Book) restLocked(o *Order, remaining uint32) error {
	if o.Confidential {
		ct, err := b.svc.Encrypt(remaining)
		if err != nil {
			return err
		}
		o.EncryptedQuantity = ct
		// Sealed prices are not comparable at rest: append in arrival order.
		if o.Side == Buy {
			b.bids = append(b.bids, o)
		} else {
			b.asks = append(b.asks, o)
		}
		return nil
	}

	o.Remaining = remaining
	if o.Side == Buy {
		b.bids = insertSorted(b.bids, o, true)
	} else {
		b.asks = insertSorted(b.asks, o, false)
	}
	return nil
}

// insertSorted places a plaintext order at its price-priority position:
// bids descending, asks ascending, FIFO within a price. Confidential
// entries are skipped over so their arrival order is preserved.
func insertSorted(side []*Order, o *Order, isBid bool) []*Order {
	for i, r := range side {
		if r.Confidential {
			continue
		}
		if (isBid && r.Price < o.Price) || (!isBid && r.Price > o.Price) {
			side = append(side, nil)
			copy(side[i+1:], side[i:])
			side[i] = o
			return side
		}
	}
	return append(side, o)
}

func (b *Book) sealLocked(o *Order) error {
	if b.svc == nil {
		return confidential.ErrNoKeyMaterial
	}
	return o.seal(b.svc)
}

// Orders returns snapshot copies of the resting bids and asks in their
// stored representation.
func (b *Book) Orders() (bids, asks []Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copySide(b.bids), copySide(b.asks)
}

func copySide(side []*Order) []Order {
	out := make([]Order, len(side))
	for i, o := range side {
		out[i] = *o
	}
	return out
}

// RenderPlaintext returns decrypted copies of the resting orders, freshly
// sorted by price. If any single order fails to decrypt the whole call
// fails; it never partial-renders. Stored orders are not mutated.
func (b *Book) RenderPlaintext() (bids, asks []Order, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bids, err = b.renderSideLocked(b.bids)
	if err != nil {
		return nil, nil, err
	}
	asks, err = b.renderSideLocked(b.asks)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return bids, asks, nil
}

func (b *Book) renderSideLocked(side []*Order) ([]Order, error) {
	out := make([]Order, 0, len(side))
	for _, o := range side {
		c := *o
		if o.Confidential {
			if b.svc == nil {
				return nil, confidential.ErrNoKeyMaterial
			}
			price, err := b.svc.Decrypt(o.EncryptedPrice)
			if err != nil {
				return nil, fmt.Errorf("render order %d: %w", o.ID, err)
			}
			qty, err := b.svc.Decrypt(o.EncryptedQuantity)
			if err != nil {
				return nil, fmt.Errorf("render order %d: %w", o.ID, err)
			}
			c.Price = price
			c.Quantity = qty
			c.Remaining = qty
			c.Confidential = false
			c.EncryptedPrice = nil
			c.EncryptedQuantity = nil
		}
		out = append(out, c)
	}
	return out, nil
}

// Fills returns the fill history in chronological match order.
func (b *Book) Fills() []Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

// Reset clears the resting orders, the fill history and the id counter. The
// confidential-mode flag is preserved.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID = 0
	b.bids = nil
	b.asks = nil
	b.fills = nil
	b.log.Infow("book_reset", "confidential", b.confidential)
}
