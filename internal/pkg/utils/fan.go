package utils

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrFanOutClosed = errors.New("input channel is closed")

// DynamicFanOut copies every input element to all outputs spawned at that moment.
// Outputs that are full lose the element instead of blocking the others.
type DynamicFanOut[T any] struct {
	input     <-chan T
	outputCap int

	mutex   sync.Mutex
	closed  bool
	outputs map[uuid.UUID]chan T
	dropped map[uuid.UUID]int

	done chan struct{}
}

// NewDynamicFanOut starts forwarding input, outputCap < 1 means capacity of input channel.
func NewDynamicFanOut[T any](input <-chan T, outputCap int) *DynamicFanOut[T] {
	if outputCap < 1 {
		outputCap = cap(input)
	}
	if outputCap < 1 {
		outputCap = 1
	}
	f := DynamicFanOut[T]{
		input:     input,
		outputCap: outputCap,
		outputs:   make(map[uuid.UUID]chan T),
		dropped:   make(map[uuid.UUID]int),
		done:      make(chan struct{}),
	}
	go f.run()
	return &f
}

func (f *DynamicFanOut[T]) run() {
	defer close(f.done)
	for e := range f.input {
		f.mutex.Lock()
		for id, o := range f.outputs {
			select {
			case o <- e:
			default:
				f.dropped[id]++
			}
		}
		f.mutex.Unlock()
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	for id, o := range f.outputs {
		close(o)
		delete(f.outputs, id)
	}
}

// SpawnOutput creates new output channel and its ID for later despawning.
// Output is closed when input channel closes.
func (f *DynamicFanOut[T]) SpawnOutput() (uuid.UUID, <-chan T, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return uuid.Nil, nil, ErrFanOutClosed
	}

	id := uuid.New()
	newChan := make(chan T, f.outputCap)
	f.outputs[id] = newChan
	return id, newChan, nil
}

// DespawnOutput removes output channel with given ID
func (f *DynamicFanOut[T]) DespawnOutput(id uuid.UUID) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	c, ok := f.outputs[id]
	if !ok {
		return fmt.Errorf("output id %s not found", id)
	}
	close(c)
	delete(f.outputs, id)
	delete(f.dropped, id)

	return nil
}

func (f *DynamicFanOut[T]) Outputs() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.outputs)
}

// Dropped reports how many elements given output lost.
func (f *DynamicFanOut[T]) Dropped(id uuid.UUID) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.dropped[id]
}

// Done is closed once input is exhausted and all outputs are closed.
func (f *DynamicFanOut[T]) Done() <-chan struct{} {
	return f.done
}
