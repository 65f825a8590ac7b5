package deploydata

// Map is a string-keyed map that remembers insertion order.
type Map[V any] struct {
	keys []string
	m    map[string]V
}

// Set adds or replaces k. A replaced key keeps its original position.
func (o *Map[V]) Set(k string, v V) {
	if o.m == nil {
		o.m = map[string]V{}
	}
	if _, ok := o.m[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.m[k] = v
}

func (o *Map[V]) Get(k string) (V, bool) {
	v, ok := o.m[k]
	return v, ok
}

func (o *Map[V]) Has(k string) bool {
	_, ok := o.m[k]
	return ok
}

// Keys returns the keys in insertion order. The caller may modify the result.
func (o *Map[V]) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Map[V]) Len() int {
	return len(o.keys)
}
