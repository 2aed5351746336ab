package model

import "github.com/shopspring/decimal"

// TokenPrice is the price of token X quoted in token Y, with display names.
type TokenPrice struct {
	NameX string          `json:"name_x"`
	NameY string          `json:"name_y"`
	Price decimal.Decimal `json:"price"`
}
