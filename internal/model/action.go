// Package model defines domain entities for the application.
package model

import "fmt"

// CanonicalAction is the normalized bucket a platform action type is counted in.
type CanonicalAction int

const (
	ActionLinkClick CanonicalAction = iota
	ActionMessagingStarted
	ActionPurchase
	ActionAddToCart
	ActionCheckoutInitiated
	ActionInstagramVisit
	ActionLeadConversion
)

// CanonicalActions lists every bucket in declaration order.
var CanonicalActions = []CanonicalAction{
	ActionLinkClick,
	ActionMessagingStarted,
	ActionPurchase,
	ActionAddToCart,
	ActionCheckoutInitiated,
	ActionInstagramVisit,
	ActionLeadConversion,
}

var actionNames = [...]string{
	ActionLinkClick:         "link_click",
	ActionMessagingStarted:  "messaging_started",
	ActionPurchase:          "purchase",
	ActionAddToCart:         "add_to_cart",
	ActionCheckoutInitiated: "checkout_initiated",
	ActionInstagramVisit:    "instagram_visit",
	ActionLeadConversion:    "lead_conversion",
}

// String returns the snake_case name of the action.
func (a CanonicalAction) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("CanonicalAction(%d)", int(a))
	}
	return actionNames[a]
}

// MarshalText lets CanonicalAction be used as a JSON map key.
func (a CanonicalAction) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown canonical action %d", int(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText parses a snake_case action name.
func (a *CanonicalAction) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*a = CanonicalAction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown canonical action %q", string(text))
}

// ActionCounts holds one counter per canonical action.
// Field tags match the report payload keys consumed by report formats.
type ActionCounts struct {
	LinkClicks         int64 `json:"link_clicks"`
	MessagesStarted    int64 `json:"messages_started"`
	Purchases          int64 `json:"purchases"`
	CartAdditions      int64 `json:"cart_additions"`
	CheckoutsInitiated int64 `json:"checkouts_initiated"`
	InstagramVisits    int64 `json:"instagram_visits"`
	Conversions        int64 `json:"conversions"`
}

// Add increments the counter for action by value.
func (c *ActionCounts) Add(action CanonicalAction, value int64) {
	if p := c.counter(action); p != nil {
		*p += value
	}
}

// Count returns the counter for action.
func (c *ActionCounts) Count(action CanonicalAction) int64 {
	if p := c.counter(action); p != nil {
		return *p
	}
	return 0
}

// Merge adds every counter of other into c.
func (c *ActionCounts) Merge(other ActionCounts) {
	for _, a := range CanonicalActions {
		c.Add(a, other.Count(a))
	}
}

func (c *ActionCounts) counter(action CanonicalAction) *int64 {
	switch action {
	case ActionLinkClick:
		return &c.LinkClicks
	case ActionMessagingStarted:
		return &c.MessagesStarted
	case ActionPurchase:
		return &c.Purchases
	case ActionAddToCart:
		return &c.CartAdditions
	case ActionCheckoutInitiated:
		return &c.CheckoutsInitiated
	case ActionInstagramVisit:
		return &c.InstagramVisits
	case ActionLeadConversion:
		return &c.Conversions
	default:
		return nil
	}
}
