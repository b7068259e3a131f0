package gpio

import "sync"

// FakePins is a test double holding line levels in memory.
// Unconfigured lines read high, like inputs with a pull-up.
type FakePins struct {
	mu sync.Mutex

	// Levels holds the current level of each line.
	Levels map[int]bool

	// Outputs records lines configured as outputs.
	Outputs map[int]bool

	// Pulls records the bias requested for input lines.
	Pulls map[int]Pull

	// Wakes records lines armed as wake sources, in order.
	Wakes []int

	// ReadError, if set, will be returned by Read().
	ReadError error

	// WatchError, if set, will be returned by Watch().
	WatchError error

	// Closed tracks if Close was called.
	Closed bool

	watches map[int]func(bool)
}

// NewFakePins creates an empty FakePins.
func NewFakePins() *FakePins {
	return &FakePins{
		Levels:  make(map[int]bool),
		Outputs: make(map[int]bool),
		Pulls:   make(map[int]Pull),
		watches: make(map[int]func(bool)),
	}
}

// Read returns the stored level.
func (f *FakePins) Read(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return true, f.ReadError
	}
	v, ok := f.Levels[pin]
	if !ok {
		return true, nil
	}
	return v, nil
}

// Write stores the level.
func (f *FakePins) Write(pin int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Levels[pin] = high
	return nil
}

// Input records the pull and clears the output flag.
func (f *FakePins) Input(pin int, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulls[pin] = pull
	delete(f.Outputs, pin)
	return nil
}

// Output marks the line as an output and stores the level.
func (f *FakePins) Output(pin int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outputs[pin] = true
	f.Levels[pin] = high
	return nil
}

// Watch stores the handler; Fall invokes it.
func (f *FakePins) Watch(pin int, onEdge func(low bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	f.watches[pin] = onEdge
	return nil
}

// EnableWake records the wake line.
func (f *FakePins) EnableWake(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Wakes = append(f.Wakes, pin)
	return nil
}

// Set changes the level of a line without triggering watches.
func (f *FakePins) Set(pin int, high bool) {
	f.mu.Lock()
	f.Levels[pin] = high
	f.mu.Unlock()
}

// Fall drives the line low and runs its watch handler, if any.
func (f *FakePins) Fall(pin int) {
	f.mu.Lock()
	f.Levels[pin] = false
	h := f.watches[pin]
	f.mu.Unlock()
	if h != nil {
		h(true)
	}
}

// Bounce runs the watch handler of a line that is already back high.
func (f *FakePins) Bounce(pin int) {
	f.mu.Lock()
	f.Levels[pin] = true
	h := f.watches[pin]
	f.mu.Unlock()
	if h != nil {
		h(false)
	}
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
