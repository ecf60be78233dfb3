// Package feed turns catalog, entitlement and progress rows into the home
// page view model. Compose is a pure function: the same Input always yields
// the same View and nothing is read or written elsewhere.
package feed

import (
	"math"
	"strings"
	"time"

	"github.com/vblendo1/koisando-green-alien/internal/models"
)

// NewScope selects which products are eligible for the new items row.
type NewScope string

const (
	NewScopeOwned NewScope = "owned"
	NewScopeAll   NewScope = "all"
)

func ParseNewScope(s string) (NewScope, bool) {
	switch NewScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", NewScopeAll:
		return NewScopeAll, true
	case NewScopeOwned:
		return NewScopeOwned, true
	}
	return "", false
}

type Options struct {
	ContinueWatchingLimit int
	NewItemWindowDays     int
	DefaultCategory       string
	NewScope              NewScope
}

func DefaultOptions() Options {
	return Options{
		ContinueWatchingLimit: 10,
		NewItemWindowDays:     7,
		DefaultCategory:       "Outros",
		NewScope:              NewScopeAll,
	}
}

type Input struct {
	// Products in display order (newest first as listed by the catalog).
	Products []models.Product
	Owned    map[string]bool
	// Activity is the user's incomplete progress, most recent first.
	Activity   []models.ProgressActivity
	Completion map[string]models.Completion
	Now        time.Time
}

type Card struct {
	Product  models.Product
	Owned    bool
	New      bool
	Progress *models.Completion
}

type Category struct {
	Name   string
	Owned  []Card
	Locked []Card
}

type View struct {
	Owned            []Card
	Locked           []Card
	Featured         *Card
	ContinueWatching []Card
	NewItems         []Card
	Categories       []Category
}

// IsNew reports whether a product created at created is still new at now:
// at most windowDays whole days have elapsed.
func IsNew(created, now time.Time, windowDays int) bool {
	days := math.Floor(now.Sub(created).Hours() / 24)
	return days <= float64(windowDays)
}

func Compose(in Input, opts Options) View {
	def := DefaultOptions()
	if opts.ContinueWatchingLimit <= 0 {
		opts.ContinueWatchingLimit = def.ContinueWatchingLimit
	}
	if opts.NewItemWindowDays <= 0 {
		opts.NewItemWindowDays = def.NewItemWindowDays
	}
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = def.DefaultCategory
	}
	if opts.NewScope == "" {
		opts.NewScope = def.NewScope
	}

	var view View
	cards := make(map[string]Card, len(in.Products))
	for _, p := range in.Products {
		card := Card{
			Product: p,
			Owned:   in.Owned[p.ID],
			New:     IsNew(p.CreatedAt, in.Now, opts.NewItemWindowDays),
		}
		if c, ok := in.Completion[p.ID]; ok && card.Owned {
			card.Progress = &c
		}
		cards[p.ID] = card

		if card.Owned {
			view.Owned = append(view.Owned, card)
		} else {
			view.Locked = append(view.Locked, card)
		}
		if card.New && (card.Owned || opts.NewScope == NewScopeAll) {
			view.NewItems = append(view.NewItems, card)
		}
	}

	view.Featured = featured(view.Owned)
	view.ContinueWatching = continueWatching(in, cards, opts.ContinueWatchingLimit)
	view.Categories = byCategory(in.Products, cards, opts.DefaultCategory)
	return view
}

func featured(owned []Card) *Card {
	for i := range owned {
		if owned[i].Product.Featured {
			c := owned[i]
			return &c
		}
	}
	if len(owned) > 0 {
		c := owned[0]
		return &c
	}
	return nil
}

func continueWatching(in Input, cards map[string]Card, limit int) []Card {
	rows := in.Activity
	if len(rows) > limit {
		rows = rows[:limit]
	}

	var out []Card
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.ProductID] {
			continue
		}
		seen[row.ProductID] = true

		card, ok := cards[row.ProductID]
		if !ok || !card.Owned {
			continue
		}
		if c, ok := in.Completion[row.ProductID]; ok && c.Done() {
			continue
		}
		out = append(out, card)
	}
	return out
}

func byCategory(products []models.Product, cards map[string]Card, defaultName string) []Category {
	var (
		order   []string
		buckets = make(map[string]*Category)
	)
	for _, p := range products {
		name := defaultName
		if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
			name = strings.TrimSpace(*p.Category)
		}
		bucket, ok := buckets[name]
		if !ok {
			bucket = &Category{Name: name}
			buckets[name] = bucket
			if name != defaultName {
				order = append(order, name)
			}
		}
		card := cards[p.ID]
		if card.Owned {
			bucket.Owned = append(bucket.Owned, card)
		} else {
			bucket.Locked = append(bucket.Locked, card)
		}
	}
	if _, ok := buckets[defaultName]; ok {
		order = append(order, defaultName)
	}

	out := make([]Category, 0, len(order))
	for _, name := range order {
		out = append(out, *buckets[name])
	}
	return out
}
