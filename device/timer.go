package device

import "time"

// diagnosticTimer is a running periodic log for one session.
type diagnosticTimer struct {
	stop chan struct{}
	done chan struct{}
}

// startTimer arms the session's diagnostic timer and returns its interval in
// milliseconds. Arming an armed timer changes nothing.
func (s *Session) startTimer() int {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer == nil {
		t := &diagnosticTimer{
			stop: make(chan struct{}),
			done: make(chan struct{}),
		}
		s.timer = t
		go s.ep.runTimer(s.id, t)
		s.ep.logger.Debug("Diagnostic timer armed", "session", s.id, "interval", s.ep.interval)
	}
	return int(s.ep.interval.Milliseconds())
}

// stopTimer disarms the timer and waits for its goroutine to exit.
func (s *Session) stopTimer() {
	s.timerMu.Lock()
	t := s.timer
	s.timer = nil
	s.timerMu.Unlock()

	if t == nil {
		return
	}
	close(t.stop)
	<-t.done
	s.ep.logger.Debug("Diagnostic timer disarmed", "session", s.id)
}

// TimerActive reports whether the diagnostic timer is armed.
func (s *Session) TimerActive() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.timer != nil
}

// runTimer logs the buffer levels every interval. Levels are read without
// locks; the log is advisory.
func (e *Endpoint) runTimer(sessionID string, t *diagnosticTimer) {
	defer close(t.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-e.gate.Done():
			return
		case <-ticker.C:
			snap := e.readLevels()
			e.logger.Info("Buffer diagnostics",
				"session", sessionID,
				"occupied", snap.occupied,
				"capacity", snap.capacity,
				"available", snap.available,
				"sessions", snap.sessions)
		}
	}
}
