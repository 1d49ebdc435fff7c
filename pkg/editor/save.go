package editor

// Save tracks one background persist started by a commit.
type Save struct {
	// ID is the identifier of the record being saved. Empty when the record
	// had none and nothing was persisted.
	ID string

	done chan struct{}
	err  error
}

func newSave() *Save {
	return &Save{done: make(chan struct{})}
}

func (s *Save) finish(err error) {
	s.err = err
	close(s.done)
}

// Done is closed when the persist has finished.
func (s *Save) Done() <-chan struct{} { return s.done }

// Wait blocks until the persist has finished and returns its error.
func (s *Save) Wait() error {
	<-s.done
	return s.err
}
