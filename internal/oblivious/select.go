package oblivious

// Unsigned is the set of fixed-width values Select can move.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// mask expands c to all-zero or all-one bits of T's width.
func mask[T Unsigned](c Choice) T {
	return T(0) - T(c)
}

// Select overwrites *dst with src when c is True and leaves it unchanged
// when c is False. Both outcomes run the same load, mask and store.
func Select[T Unsigned](dst *T, src T, c Choice) {
	m := mask[T](c)
	*dst = (*dst &^ m) | (src & m)
}

// Pick returns a when c is True and b otherwise.
func Pick[T Unsigned](a, b T, c Choice) T {
	m := mask[T](c)

	return (a & m) | (b &^ m)
}

