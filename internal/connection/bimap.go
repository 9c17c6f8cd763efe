package connection

import "slices"

// biMap maps each key to an ordered list of values and each value back to
// its key. A value belongs to at most one key. Lookups are O(1) in both
// directions; removing one value is linear in the values of its key.
type biMap[K comparable, V comparable] struct {
	forward map[K][]V
	reverse map[V]K
}

func newBiMap[K comparable, V comparable]() *biMap[K, V] {
	return &biMap[K, V]{
		forward: make(map[K][]V),
		reverse: make(map[V]K),
	}
}

// len returns the number of key/value pairs.
func (b *biMap[K, V]) len() int {
	return len(b.reverse)
}

func (b *biMap[K, V]) has(key K) bool {
	_, ok := b.forward[key]
	return ok
}

func (b *biMap[K, V]) hasValue(value V) bool {
	_, ok := b.reverse[value]
	return ok
}

// values returns the values of key, oldest first.
func (b *biMap[K, V]) values(key K) []V {
	return slices.Clone(b.forward[key])
}

func (b *biMap[K, V]) getKey(value V) (K, bool) {
	k, ok := b.reverse[value]
	return k, ok
}

// add appends value to key. A value already mapped elsewhere is moved.
func (b *biMap[K, V]) add(key K, value V) {
	b.deleteByValue(value)
	b.forward[key] = append(b.forward[key], value)
	b.reverse[value] = key
}

// delete drops key and all of its values.
func (b *biMap[K, V]) delete(key K) {
	for _, v := range b.forward[key] {
		delete(b.reverse, v)
	}
	delete(b.forward, key)
}

// deleteByValue drops one pair. The key goes with its last value.
func (b *biMap[K, V]) deleteByValue(value V) {
	k, ok := b.reverse[value]
	if !ok {
		return
	}
	delete(b.reverse, value)

	vals := slices.DeleteFunc(b.forward[k], func(v V) bool { return v == value })
	if len(vals) == 0 {
		delete(b.forward, k)
	} else {
		b.forward[k] = vals
	}
}
