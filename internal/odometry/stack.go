package odometry

import "fmt"

// Stack is a window of consecutive frames concatenated along the channel
// axis. Index is the window's first frame; the earliest frame occupies the
// first channel block.
type Stack struct {
	Index int
	Size  int
	Tensor
}

// StackCount returns how many stacks n frames produce, or 0 when the stack
// size is not usable.
func StackCount(n, stackSize int) int {
	if stackSize <= 0 || stackSize > n {
		return 0
	}
	return n - stackSize + 1
}

func validateStackSize(n, stackSize int) error {
	if stackSize <= 0 {
		return fmt.Errorf("%w: stack size must be positive, got %d", ErrInvalidConfiguration, stackSize)
	}
	if stackSize > n {
		return fmt.Errorf("%w: stack size %d exceeds %d available frames", ErrInvalidConfiguration, stackSize, n)
	}
	return nil
}

// BuildStacks produces the N-stackSize+1 overlapping stacks of frames. Stack
// i covers frames [i, i+stackSize). All frames must share one shape.
func BuildStacks(frames []Tensor, stackSize int) ([]Stack, error) {
	if err := validateStackSize(len(frames), stackSize); err != nil {
		return nil, err
	}
	first := frames[0]
	for i, f := range frames[1:] {
		if !f.SameShape(first) {
			return nil, stepError(i+1, fmt.Errorf("%w: frame is %s, expected %s",
				ErrShapeMismatch, f.ShapeString(), first.ShapeString()))
		}
	}
	for i, f := range frames {
		if len(f.Data) != f.Rows*f.Cols*f.Channels {
			return nil, stepError(i, fmt.Errorf("%w: frame %s holds %d values",
				ErrShapeMismatch, f.ShapeString(), len(f.Data)))
		}
	}

	channels := first.Channels
	pixels := first.Rows * first.Cols
	stacks := make([]Stack, StackCount(len(frames), stackSize))
	for i := range stacks {
		t := NewTensor(first.Rows, first.Cols, channels*stackSize)
		for p := 0; p < pixels; p++ {
			dst := t.Data[p*channels*stackSize:]
			for j := 0; j < stackSize; j++ {
				copy(dst[j*channels:(j+1)*channels], frames[i+j].Data[p*channels:(p+1)*channels])
			}
		}
		stacks[i] = Stack{Index: i, Size: stackSize, Tensor: t}
	}
	return stacks, nil
}

// Span returns the first and last timestamps the stack covers.
func (s Stack) Span(stamps []float64) (start, end float64, err error) {
	last := s.Index + s.Size - 1
	if s.Index < 0 || last >= len(stamps) {
		return 0, 0, fmt.Errorf("%w: stack %d spans frames %d..%d but only %d stamps exist",
			ErrInvalidConfiguration, s.Index, s.Index, last, len(stamps))
	}
	return stamps[s.Index], stamps[last], nil
}

// TruncateTargets drops the trailing stackSize-1 targets so that target i
// lines up with the stack that starts at frame i.
func TruncateTargets[T any](targets []T, stackSize int) ([]T, error) {
	if err := validateStackSize(len(targets), stackSize); err != nil {
		return nil, err
	}
	return targets[:StackCount(len(targets), stackSize)], nil
}
