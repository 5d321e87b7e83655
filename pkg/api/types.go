package api

import "github.com/veillabs/veilbook/pkg/book"

// Wire types for the REST endpoints and WebSocket messages.

// ==============================
// REST Request Types
// ==============================

// OrderRequest is the payload for POST /orders.
type OrderRequest struct {
	Price    uint32 `json:"price"`
	Quantity uint32 `json:"quantity"`
	Side     string `json:"side"`
	Owner    string `json:"owner"`
}

// MarketOrderRequest is the payload for POST /market-buy and /market-sell.
type MarketOrderRequest struct {
	Quantity uint32 `json:"quantity"`
	Owner    string `json:"owner"`
}

// ConfigRequest is the payload for POST /config.
type ConfigRequest struct {
	Confidential bool `json:"confidential"`
}

// ==============================
// REST Response Types
// ==============================

// SubmitResponse confirms an accepted order.
type SubmitResponse struct {
	Success     bool   `json:"success"`
	ID          uint64 `json:"id"`
	IsEncrypted bool   `json:"is_encrypted"`
}

// OrdersResponse is the current book, bids best-first then asks best-first.
type OrdersResponse struct {
	Bids []book.Order `json:"bids"`
	Asks []book.Order `json:"asks"`
}

// ConfigResponse reports the book's sealing policy.
type ConfigResponse struct {
	Confidential bool `json:"confidential"`
}

// MessageResponse is a generic success payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResetResponse confirms a book reset.
type ResetResponse struct {
	Success      bool `json:"success"`
	Confidential bool `json:"confidential"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to subscribe to channels
// ("book", "fills").
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// BookUpdate is broadcast on the "book" channel after every state change.
type BookUpdate struct {
	Type string       `json:"type"` // "book"
	Bids []book.Order `json:"bids"`
	Asks []book.Order `json:"asks"`
}

// FillUpdate is broadcast on the "fills" channel for every recorded fill.
type FillUpdate struct {
	Type string    `json:"type"` // "fill"
	Fill book.Fill `json:"fill"`
}
