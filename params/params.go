// Package params holds decoded query and body parameters as an ordered
// multimap. Keys are case-sensitive and may repeat; insertion order is kept.
package params

import "iter"

type Pair struct {
	Key   string
	Value string
}

// Params is an ordered, duplicate-key-permitting parameter store.
// A nil *Params behaves as an empty store.
type Params struct {
	pairs []Pair
	index map[string][]int
}

func New(pairs ...Pair) *Params {
	p := &Params{
		pairs: make([]Pair, 0, len(pairs)),
		index: make(map[string][]int, len(pairs)),
	}
	for _, pair := range pairs {
		p.Add(pair.Key, pair.Value)
	}
	return p
}

func (p *Params) Add(key, value string) {
	if p.index == nil {
		p.index = make(map[string][]int)
	}
	p.index[key] = append(p.index[key], len(p.pairs))
	p.pairs = append(p.pairs, Pair{Key: key, Value: value})
}

// Values returns every value stored under key, in insertion order.
func (p *Params) Values(key string) []string {
	if p == nil {
		return nil
	}
	idx := p.index[key]
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, at := range idx {
		out[i] = p.pairs[at].Value
	}
	return out
}

func (p *Params) Lookup(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	idx := p.index[key]
	if len(idx) == 0 {
		return "", false
	}
	return p.pairs[idx[0]].Value, true
}

// First returns the first value for key, or def when key is absent.
// A present key with an empty value yields the empty string, not def.
func (p *Params) First(key, def string) string {
	if v, ok := p.Lookup(key); ok {
		return v
	}
	return def
}

func (p *Params) Has(key string) bool {
	_, ok := p.Lookup(key)
	return ok
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pairs)
}

// Keys returns the distinct keys in first-seen order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, len(p.index))
	for i, pair := range p.pairs {
		if p.index[pair.Key][0] == i {
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

func (p *Params) Pairs() []Pair {
	if p == nil {
		return nil
	}
	out := make([]Pair, len(p.pairs))
	copy(out, p.pairs)
	return out
}

// All yields every (key, value) pair in insertion order.
func (p *Params) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if p == nil {
			return
		}
		for _, pair := range p.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}
