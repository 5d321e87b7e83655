package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/veillabs/veilbook/pkg/confidential"
)

// Side of an order. Buy orders rest in the bids, sell orders in the asks.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

// ErrInvalidSide is returned when an order side string is neither "buy" nor
// "sell".
var ErrInvalidSide = errors.New("book: invalid side, must be \"buy\" or \"sell\"")

// ParseSide parses a side string, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, ErrInvalidSide
	}
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

// MarshalJSON encodes the side as "buy"/"sell" on the wire.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Order is a single resting or incoming order. ID, Side and Owner never
// change after creation. An order carries exactly one representation of its
// price and quantity:
//
//   - plaintext: Price, Quantity (as submitted) and Remaining (unfilled part)
//   - confidential: EncryptedPrice and EncryptedQuantity, with the plaintext
//     fields zeroed; EncryptedQuantity always holds the remaining quantity
//
// The constructors below are the only way orders are created, so the two
// representations never mix on the same order.
type Order struct {
	ID    uint64 `json:"id"`
	Side  Side   `json:"side"`
	Owner string `json:"owner"`

	Price     uint32 `json:"price"`
	Quantity  uint32 `json:"quantity"`
	Remaining uint32 `json:"remaining"`

	Confidential      bool                    `json:"is_encrypted"`
	EncryptedPrice    confidential.Ciphertext `json:"encrypted_price,omitempty"`
	EncryptedQuantity confidential.Ciphertext `json:"encrypted_quantity,omitempty"`
}

func newOrder(id uint64, side Side, price, quantity uint32, owner string) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Owner:     owner,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
	}
}

// seal converts a plaintext order to its confidential representation using
// svc. On success the plaintext fields are zeroed.
func (o *Order) seal(svc confidential.Service) error {
	encPrice, err := svc.Encrypt(o.Price)
	if err != nil {
		return err
	}
	encQty, err := svc.Encrypt(o.Remaining)
	if err != nil {
		return err
	}
	o.EncryptedPrice = encPrice
	o.EncryptedQuantity = encQty
	o.Confidential = true
	o.Price = 0
	o.Quantity = 0
	o.Remaining = 0
	return nil
}

// Fill is the immutable record of one match between a buy and a sell order.
// Fills are append-only: once recorded they are never mutated or removed.
type Fill struct {
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       uint32 `json:"price"`
	Quantity    uint32 `json:"quantity"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
}
