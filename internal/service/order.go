package service

// Order is the fixed-capacity start-order table (context_t.start_order),
// storing table indices with -1 as the "slot not yet used" sentinel.
type Order struct {
	slots [MaxServices]int
}

// NewOrder returns an order table with every slot empty.
func NewOrder() *Order {
	o := &Order{}
	for i := range o.slots {
		o.slots[i] = -1
	}
	return o
}

// Insert places dependency before dependent in the order, preserving every
// previously recorded "A before B" relation (P5). This is a direct port of
// add_to_start_order: scan for the first empty slot or for dependent's
// current slot, whichever comes first; if dependent isn't present yet,
// dependency is simply appended at the first free slot, otherwise every
// entry from dependent's slot onward is shifted right by one and
// dependency is written in the freed slot immediately before it.
func (o *Order) Insert(dependency, dependent int) {
	for i := 0; i < len(o.slots); i++ {
		switch o.slots[i] {
		case -1:
			o.slots[i] = dependency
			return
		case dependent:
			for j := len(o.slots) - 1; j > i; j-- {
				o.slots[j] = o.slots[j-1]
			}
			o.slots[i] = dependency
			return
		}
	}
}

// Indices returns the table indices in start order, omitting empty slots.
func (o *Order) Indices() []int {
	out := make([]int, 0, len(o.slots))
	for _, v := range o.slots {
		if v != -1 {
			out = append(out, v)
		}
	}
	return out
}

// Reverse returns the start order reversed, used by the shutdown driver's
// reverse-order polite-stop phase.
func (o *Order) Reverse() []int {
	fwd := o.Indices()
	out := make([]int, len(fwd))
	for i, v := range fwd {
		out[len(fwd)-1-i] = v
	}
	return out
}
