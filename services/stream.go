package services

import (
	"iter"

	currency "github.com/malusev998/currency-rates"
)

// producer pushes rates through yield until it is done or yield returns false.
// Whatever it defers runs exactly once, when it finishes or when the consumer
// closes the stream early.
type producer func(yield func(currency.ExchangeRate) bool) error

// Stream is a pull-based, single-use sequence of exchange rates. Callers must
// Close it, also after reading it to the end.
type Stream struct {
	next     func() (currency.ExchangeRate, error, bool)
	stop     func()
	current  currency.ExchangeRate
	err      error
	closeErr error
	done     bool
}

func newStream(run producer) *Stream {
	s := &Stream{}

	seq := func(yield func(currency.ExchangeRate, error) bool) {
		stopped := false

		err := run(func(rate currency.ExchangeRate) bool {
			if !yield(rate, nil) {
				stopped = true
				return false
			}

			return true
		})

		if err == nil {
			return
		}

		if stopped {
			s.closeErr = err
			return
		}

		yield(currency.ExchangeRate{}, err)
	}

	s.next, s.stop = iter.Pull2(seq)

	return s
}

// Next advances to the next rate. It returns false at the end of the stream or
// on the first error, which is then available from Err.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	rate, err, ok := s.next()

	if !ok {
		s.done = true
		return false
	}

	if err != nil {
		s.err = err
		s.done = true
		s.stop()

		return false
	}

	s.current = rate

	return true
}

func (s *Stream) Rate() currency.ExchangeRate {
	return s.current
}

func (s *Stream) Err() error {
	return s.err
}

// Close releases the stream. Closing before the end abandons the remaining
// rates; buffered writes are still flushed and their error returned.
func (s *Stream) Close() error {
	s.done = true
	s.stop()

	if s.err != nil {
		return s.err
	}

	return s.closeErr
}

// Collect drains and closes the stream.
func (s *Stream) Collect() ([]currency.ExchangeRate, error) {
	return currency.Collect(s)
}

// All adapts the stream to a range-over-func loop; breaking out of the loop
// closes the stream. The error, if any, is yielded last.
func (s *Stream) All() iter.Seq2[currency.ExchangeRate, error] {
	return func(yield func(currency.ExchangeRate, error) bool) {
		defer s.Close()

		for s.Next() {
			if !yield(s.Rate(), nil) {
				return
			}
		}

		if err := s.Close(); err != nil {
			yield(currency.ExchangeRate{}, err)
		}
	}
}
