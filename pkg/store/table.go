package store

// table is a name-keyed map that remembers insertion order so the on-disk
// form stays diff-friendly.
type table[T any] struct {
	keys  []string
	items map[string]*T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]*T)}
}

func (t *table[T]) get(name string) (*T, bool) {
	v, ok := t.items[name]
	return v, ok
}

// getOrCreate returns the record for name, appending a zero value when it
// does not exist yet.
func (t *table[T]) getOrCreate(name string) (*T, bool) {
	if v, ok := t.items[name]; ok {
		return v, false
	}
	v := new(T)
	t.items[name] = v
	t.keys = append(t.keys, name)
	return v, true
}

func (t *table[T]) delete(name string) bool {
	if _, ok := t.items[name]; !ok {
		return false
	}
	delete(t.items, name)
	for i, k := range t.keys {
		if k == name {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) len() int {
	return len(t.keys)
}

func (t *table[T]) each(fn func(name string, v *T)) {
	for _, k := range t.keys {
		fn(k, t.items[k])
	}
}

func (t *table[T]) list(clone func(T) T) []T {
	out := make([]T, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, clone(*t.items[k]))
	}
	return out
}
