package mfsstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// Value type ranks for ordering mixed column values
const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case float64:
		return rankNumber
	case string:
		return rankString
	default:
		return rankOther
	}
}

// compareValues orders null < bool < number < string < anything else.
// Arrays and objects compare by their canonical JSON text.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return utils.IntComparator(ra, rb)
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		return utils.Float64Comparator(av, b.(float64))
	case string:
		return utils.StringComparator(av, b.(string))
	default:
		return strings.Compare(canonicalJSON(a), canonicalJSON(b))
	}
}

func valuesEqual(a, b any) bool {
	return compareValues(a, b) == 0
}

func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// sortedIndex is one column's index: value -> Key for unique columns,
// value -> []Key for the others.
type sortedIndex struct {
	unique bool
	tree   *treemap.Map
}

func newSortedIndex(unique bool) *sortedIndex {
	return &sortedIndex{
		unique: unique,
		tree:   treemap.NewWith(compareValues),
	}
}

func (ix *sortedIndex) size() int {
	return ix.tree.Size()
}

// owner returns the key a unique value maps to
func (ix *sortedIndex) owner(value any) (Key, bool) {
	v, found := ix.tree.Get(value)
	if !found {
		return "", false
	}
	return v.(Key), true
}

func (ix *sortedIndex) setOwner(value any, key Key) {
	ix.tree.Put(value, key)
}

// keys returns the key list of a non-unique value
func (ix *sortedIndex) keys(value any) []Key {
	v, found := ix.tree.Get(value)
	if !found {
		return nil
	}
	return v.([]Key)
}

func (ix *sortedIndex) remove(value any) {
	ix.tree.Remove(value)
}

// addKey appends key to the value's list unless it is already there
func (ix *sortedIndex) addKey(value any, key Key) bool {
	list := ix.keys(value)
	for _, k := range list {
		if k == key {
			return false
		}
	}
	next := make([]Key, len(list), len(list)+1)
	copy(next, list)
	ix.tree.Put(value, append(next, key))
	return true
}

// removeKey drops key from the value's list; an emptied list is removed
func (ix *sortedIndex) removeKey(value any, key Key) bool {
	list := ix.keys(value)
	for i, k := range list {
		if k != key {
			continue
		}
		if len(list) == 1 {
			ix.tree.Remove(value)
			return true
		}
		next := make([]Key, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		ix.tree.Put(value, next)
		return true
	}
	return false
}

// lookup returns the keys stored under one value
func (ix *sortedIndex) lookup(value any) []Key {
	if ix.unique {
		if k, ok := ix.owner(value); ok {
			return []Key{k}
		}
		return nil
	}
	return append([]Key(nil), ix.keys(value)...)
}

// between returns the keys of every value v with from <= v <= to
func (ix *sortedIndex) between(from, to any) []Key {
	var out []Key
	it := ix.tree.Iterator()
	for it.Next() {
		if compareValues(it.Key(), from) < 0 {
			continue
		}
		if compareValues(it.Key(), to) > 0 {
			break
		}
		out = ix.appendPayload(out, it.Value())
	}
	return out
}

func (ix *sortedIndex) all() []Key {
	out := make([]Key, 0, ix.tree.Size())
	it := ix.tree.Iterator()
	for it.Next() {
		out = ix.appendPayload(out, it.Value())
	}
	return out
}

func (ix *sortedIndex) appendPayload(out []Key, payload any) []Key {
	if ix.unique {
		return append(out, payload.(Key))
	}
	return append(out, payload.([]Key)...)
}

// MarshalJSON writes the index as [[value, payload], ...] in ascending
// value order.
func (ix *sortedIndex) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, ix.tree.Size())
	it := ix.tree.Iterator()
	for it.Next() {
		pairs = append(pairs, [2]any{it.Key(), it.Value()})
	}
	return json.Marshal(pairs)
}

func (ix *sortedIndex) decode(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}

	tree := treemap.NewWith(compareValues)
	for i, pair := range pairs {
		var value any
		if err := json.Unmarshal(pair[0], &value); err != nil {
			return fmt.Errorf("pair %d value: %w", i, err)
		}
		if ix.unique {
			var key Key
			if err := json.Unmarshal(pair[1], &key); err != nil {
				return fmt.Errorf("pair %d key: %w", i, err)
			}
			tree.Put(value, key)
			continue
		}
		var keys []Key
		if err := json.Unmarshal(pair[1], &keys); err != nil {
			return fmt.Errorf("pair %d keys: %w", i, err)
		}
		if len(keys) > 0 {
			tree.Put(value, keys)
		}
	}
	ix.tree = tree
	return nil
}
