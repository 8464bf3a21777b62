package mmu

// A Builder can build MMU component
type Builder struct {
	maxFaultRetries int
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		maxFaultRetries: 1,
	}
}

// WithMaxFaultRetries sets how many times an access is retried after the
// fault handler returns successfully.
func (b Builder) WithMaxFaultRetries(n int) Builder {
	b.maxFaultRetries = n
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	if b.maxFaultRetries < 1 {
		panic("an MMU must retry a faulting access at least once")
	}

	mmu := &Comp{
		name:            name,
		maxFaultRetries: b.maxFaultRetries,
	}

	return mmu
}
