package model

import "strings"

// SlotAbsent is the literal marker for a field the extractor did not find.
const SlotAbsent = "None"

const (
	SlotOrderID        = "order_id"
	SlotPhoneNumber    = "phone_number"
	SlotPersonName     = "person_name"
	SlotComment        = "comment"
	SlotFoodName       = "food_name"
	SlotRestaurantName = "restaurant_name"
	SlotPrice          = "price"
	SlotStatus         = "status"
)

var (
	OrderSlotFields = []string{SlotOrderID, SlotPhoneNumber, SlotPersonName}
	FoodSlotFields  = []string{SlotFoodName, SlotRestaurantName}
)

// Slots maps a field name to its extracted value or SlotAbsent.
type Slots map[string]string

// AbsentSlots returns slots with every field set to SlotAbsent.
func AbsentSlots(fields []string) Slots {
	s := make(Slots, len(fields))
	for _, f := range fields {
		s[f] = SlotAbsent
	}
	return s
}

// Get returns the value for field, or SlotAbsent when it was never set.
func (s Slots) Get(field string) string {
	if v, ok := s[field]; ok {
		return v
	}
	return SlotAbsent
}

// Has reports whether field carries a real value.
func (s Slots) Has(field string) bool {
	return !IsAbsent(s.Get(field))
}

// Merge copies every present value of other into s.
func (s Slots) Merge(other Slots) {
	for k, v := range other {
		if !IsAbsent(v) {
			s[k] = v
		}
	}
}

// Any reports whether at least one field carries a real value.
func (s Slots) Any() bool {
	for _, v := range s {
		if !IsAbsent(v) {
			return true
		}
	}
	return false
}

// IsAbsent reports whether v is the absence sentinel or empty.
func IsAbsent(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, SlotAbsent)
}
