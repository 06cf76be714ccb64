package service

import "fmt"

// Table is the fixed-capacity, name/pid-indexed service registry described
// by context_t.services in the original implementation. The supervisor
// loop is the table's single writer; readers (the output multiplexer,
// the status command) only ever see immutable Definition fields and the
// atomically-updated LoggerExit flag.
type Table struct {
	services [MaxServices]*Service
	count    int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Allocate reserves the next free slot for def, returning the new Service.
// It mirrors alloc_service_index's simple linear-scan-for-empty-slot
// behavior.
func (t *Table) Allocate(def Definition) (*Service, error) {
	if t.count >= MaxServices {
		return nil, fmt.Errorf("service: table full (max %d services)", MaxServices)
	}
	for i := 0; i < MaxServices; i++ {
		if t.services[i] == nil {
			svc := &Service{Index: i, Definition: def}
			t.services[i] = svc
			t.count++
			return svc, nil
		}
	}
	return nil, fmt.Errorf("service: no free slot")
}

// All returns every allocated service, in table-index order.
func (t *Table) All() []*Service {
	out := make([]*Service, 0, t.count)
	for _, s := range t.services {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// FindByName returns the service with the given name, or nil.
func (t *Table) FindByName(name string) *Service {
	for _, s := range t.services {
		if s != nil && s.Name == name {
			return s
		}
	}
	return nil
}

// FindByPID returns the service currently tracking pid, or nil.
func (t *Table) FindByPID(pid int) *Service {
	if pid == 0 {
		return nil
	}
	for _, s := range t.services {
		if s != nil && s.PID == pid {
			return s
		}
	}
	return nil
}

// At returns the service stored at a table index, or nil.
func (t *Table) At(index int) *Service {
	if index < 0 || index >= MaxServices {
		return nil
	}
	return t.services[index]
}

// Count returns the number of allocated services.
func (t *Table) Count() int { return t.count }

// Clear removes every service from the table.
func (t *Table) Clear() {
	for i := range t.services {
		t.services[i] = nil
	}
	t.count = 0
}
