package cache

import "strings"

// ConsumerClass is the category of requester used to select a base TTL.
type ConsumerClass string

const (
	ClassManufacturer ConsumerClass = "manufacturer"
	ClassDistributor  ConsumerClass = "distributor"
	ClassRetailer     ConsumerClass = "retailer"
	ClassDefault      ConsumerClass = "default"
)

// KnownClasses returns every consumer class tracked by the layer.
func KnownClasses() []ConsumerClass {
	return []ConsumerClass{ClassManufacturer, ClassDistributor, ClassRetailer, ClassDefault}
}

// NormalizeClass maps a requester-supplied class to a known one.
// Unknown or empty values fall back to ClassDefault.
func NormalizeClass(s string) ConsumerClass {
	c := ConsumerClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownClasses() {
		if c == known {
			return c
		}
	}
	return ClassDefault
}
