package pricing

import "fmt"

// Table is the fixed pricing scheme for one edition: ticket types in
// display order, their unit prices, and the types a discount code never
// applies to. Tables are immutable once built.
type Table struct {
	types  []string
	prices map[string]int
	exempt map[string]bool
}

type TicketPrice struct {
	Type  string
	Price int
}

// NewTable builds a table from ordered ticket prices and the set of
// discount-exempt types.
func NewTable(prices []TicketPrice, exempt ...string) Table {
	t := Table{
		types:  make([]string, 0, len(prices)),
		prices: make(map[string]int, len(prices)),
		exempt: make(map[string]bool, len(exempt)),
	}
	for _, p := range prices {
		t.types = append(t.types, p.Type)
		t.prices[p.Type] = p.Price
	}
	for _, typ := range exempt {
		t.exempt[typ] = true
	}
	return t
}

// Types returns the ticket types in their configured order.
func (t Table) Types() []string {
	out := make([]string, len(t.types))
	copy(out, t.types)
	return out
}

// Price returns the unit price for a ticket type.
func (t Table) Price(ticketType string) (int, bool) {
	price, ok := t.prices[ticketType]
	return price, ok
}

// MinPrice returns the lowest unit price across all types.
func (t Table) MinPrice() int {
	min := 0
	for i, typ := range t.types {
		if i == 0 || t.prices[typ] < min {
			min = t.prices[typ]
		}
	}
	return min
}

// Exempt reports whether a ticket type is excluded from discounts.
func (t Table) Exempt(ticketType string) bool {
	return t.exempt[ticketType]
}

// Editions observed so far. The bootcamp edition keeps its free-tier
// community tickets out of discount calculations; the conference edition
// discounts everything.
var editions = map[string]Table{
	"bootcamp": NewTable([]TicketPrice{
		{Type: "community", Price: 699},
		{Type: "normal", Price: 1499},
		{Type: "supporter", Price: 1999},
	}, "community"),
	"conference": NewTable([]TicketPrice{
		{Type: "early_bird", Price: 1499},
		{Type: "normal", Price: 1999},
		{Type: "supporter", Price: 2499},
	}),
}

// Edition returns the pricing table for a named edition.
func Edition(name string) (Table, error) {
	table, ok := editions[name]
	if !ok {
		return Table{}, fmt.Errorf("unknown pricing edition: %s", name)
	}
	return table, nil
}
