// Package report turns raw ads platform insights into report metrics,
// renders them for delivery, and generates reports on demand.
package report

import (
	"strings"

	"github.com/adpulse/adpulse/internal/model"
)

// actionRule maps platform action types to one canonical bucket.
// A rule matches on any exact name or any substring.
type actionRule struct {
	action     model.CanonicalAction
	exact      []string
	substrings []string
}

// Rules are evaluated in order and the first match wins.
var actionRules = []actionRule{
	{
		action: model.ActionLinkClick,
		exact:  []string{"link_click"},
	},
	{
		action:     model.ActionMessagingStarted,
		exact:      []string{"onsite_conversion.messaging_conversation_started_7d"},
		substrings: []string{"messaging_conversation_started"},
	},
	{
		action:     model.ActionPurchase,
		exact:      []string{"purchase", "omni_purchase"},
		substrings: []string{"fb_pixel_purchase"},
	},
	{
		action:     model.ActionAddToCart,
		exact:      []string{"add_to_cart", "omni_add_to_cart"},
		substrings: []string{"fb_pixel_add_to_cart"},
	},
	{
		action:     model.ActionCheckoutInitiated,
		exact:      []string{"initiate_checkout", "omni_initiated_checkout"},
		substrings: []string{"fb_pixel_initiate_checkout"},
	},
	{
		action: model.ActionInstagramVisit,
		exact:  []string{"instagram_profile_visit"},
	},
	{
		action:     model.ActionLeadConversion,
		exact:      []string{"lead", "complete_registration", "onsite_conversion.lead_grouped"},
		substrings: []string{"fb_pixel_lead"},
	},
}

// Classify maps a platform action type to its canonical bucket.
// Matching is case-sensitive. The second result is false for unknown types.
func Classify(actionType string) (model.CanonicalAction, bool) {
	for _, rule := range actionRules {
		if rule.matches(actionType) {
			return rule.action, true
		}
	}
	return 0, false
}

func (r actionRule) matches(actionType string) bool {
	for _, name := range r.exact {
		if actionType == name {
			return true
		}
	}
	for _, sub := range r.substrings {
		if strings.Contains(actionType, sub) {
			return true
		}
	}
	return false
}

// classifyActions folds raw actions into counts and returns the total value
// of actions no rule recognized.
func classifyActions(actions []model.RawAction, counts *model.ActionCounts) (unclassified int64) {
	for _, a := range actions {
		action, ok := Classify(a.ActionType)
		if !ok {
			unclassified += a.Value
			continue
		}
		counts.Add(action, a.Value)
	}
	return unclassified
}
