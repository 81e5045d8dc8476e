package schedule

import "time"

// Token identifies a scheduled timer. The zero Token is never issued.
type Token uint64

// Scheduler creates timers whose callbacks run on a Loop.
// Its methods must be called from the loop goroutine.
type Scheduler struct {
	loop *Loop
	last Token
	// live maps tokens to the function that stops their timer goroutine.
	live map[Token]func()
}

// NewScheduler binds a scheduler to the loop.
func NewScheduler(loop *Loop) *Scheduler {
	return &Scheduler{
		loop: loop,
		live: make(map[Token]func()),
	}
}

// Repeat calls fn on the loop every period until the token is cancelled.
// The first call happens one period from now.
func (s *Scheduler) Repeat(period time.Duration, fn func()) Token {
	token := s.nextToken()
	stop := make(chan struct{})
	ticker := time.NewTicker(period)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-s.loop.Done():
				return
			case <-ticker.C:
				if !s.loop.Post(s.guard(token, fn, false)) {
					return
				}
			}
		}
	}()

	s.live[token] = func() { close(stop) }

	return token
}

// After calls fn on the loop once after delay unless the token is cancelled first.
func (s *Scheduler) After(delay time.Duration, fn func()) Token {
	token := s.nextToken()
	stop := make(chan struct{})
	timer := time.NewTimer(delay)

	go func() {
		defer timer.Stop()

		select {
		case <-stop:
		case <-s.loop.Done():
		case <-timer.C:
			s.loop.Post(s.guard(token, fn, true))
		}
	}()

	s.live[token] = func() { close(stop) }

	return token
}

// Cancel stops the timer behind the token. It reports whether the token was live.
// Cancelling the zero Token or an expired one is a no-op.
func (s *Scheduler) Cancel(token Token) bool {
	stop, ok := s.live[token]
	if !ok {
		return false
	}

	delete(s.live, token)
	stop()

	return true
}

// Active reports whether the token still refers to a pending timer.
func (s *Scheduler) Active(token Token) bool {
	_, ok := s.live[token]

	return ok
}

// CancelAll stops every live timer.
func (s *Scheduler) CancelAll() {
	for token := range s.live {
		s.Cancel(token)
	}
}

// Len returns the number of live timers.
func (s *Scheduler) Len() int {
	return len(s.live)
}

// guard wraps fn so it only runs while the token is live.
// One-shot tokens are retired before fn runs.
func (s *Scheduler) guard(token Token, fn func(), oneShot bool) func() {
	return func() {
		if _, ok := s.live[token]; !ok {
			return
		}

		if oneShot {
			delete(s.live, token)
		}

		fn()
	}
}

func (s *Scheduler) nextToken() Token {
	s.last++

	return s.last
}
