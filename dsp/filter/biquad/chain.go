package biquad

// Chain runs multiple sections in series.
type Chain struct {
	sections []*Section
}

// NewChain creates a serial chain from the given coefficient sets.
func NewChain(coeffs ...Coefficients) *Chain {
	sections := make([]*Section, len(coeffs))
	for i, c := range coeffs {
		sections[i] = NewSection(c)
	}

	return &Chain{sections: sections}
}

// Len returns the number of sections.
func (c *Chain) Len() int {
	return len(c.sections)
}

// Section returns section i for coefficient updates.
func (c *Chain) Section(i int) *Section {
	return c.sections[i]
}

// ProcessSample runs one sample through every section.
func (c *Chain) ProcessSample(x float64) float64 {
	for _, s := range c.sections {
		x = s.ProcessSample(x)
	}

	return x
}

// ProcessBlock filters buf in place through every section.
func (c *Chain) ProcessBlock(buf []float64) {
	for _, s := range c.sections {
		s.ProcessBlock(buf)
	}
}

// Reset clears the state of every section.
func (c *Chain) Reset() {
	for _, s := range c.sections {
		s.Reset()
	}
}
