// internal/domain/cart/merge.go
package cart

// The functions below never modify their input slice; every store and the
// controller apply mutations through them so all backends agree on identity.

// AddLine merges line into items: an existing line with the same identity has its
// quantity increased, otherwise line is appended.
func AddLine(items []LineItem, line LineItem) []LineItem {
	out := Clone(items)
	key := line.Key()
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity += line.Quantity
			return out
		}
	}
	return append(out, line)
}

// SetLineQuantity sets the quantity of the line with key. A quantity below one
// removes the line. A missing line leaves items unchanged.
func SetLineQuantity(items []LineItem, key IdentityKey, quantity int) []LineItem {
	if quantity < 1 {
		return RemoveLine(items, key)
	}
	out := Clone(items)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity = quantity
			break
		}
	}
	return out
}

// RemoveLine drops the line with exactly key
func RemoveLine(items []LineItem, key IdentityKey) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, li := range items {
		if li.Key() != key {
			out = append(out, cloneLine(li))
		}
	}
	return out
}

// FindLine returns the line with key
func FindLine(items []LineItem, key IdentityKey) (LineItem, bool) {
	for _, li := range items {
		if li.Key() == key {
			return li, true
		}
	}
	return LineItem{}, false
}

// Clone deep-copies a line list
func Clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, li := range items {
		out[i] = cloneLine(li)
	}
	return out
}

func cloneLine(li LineItem) LineItem {
	if li.Price != nil {
		p := *li.Price
		li.Price = &p
	}
	if li.Variant != nil {
		v := *li.Variant
		li.Variant = &v
	}
	return li
}
