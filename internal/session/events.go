package session

import "pensionflow/internal/workflow"

// Subscribe returns a channel of the session's events and a func that
// ends the subscription. A subscriber that falls behind loses events
// rather than stalling the workflow.
func (s *Session) Subscribe() (<-chan workflow.Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan workflow.Event, s.cfg.EventBuffer)
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) publish(e workflow.Event) {
	if e.Data == nil {
		e.Data = make(map[string]interface{}, 1)
	} else {
		data := make(map[string]interface{}, len(e.Data)+1)
		for k, v := range e.Data {
			data[k] = v
		}
		e.Data = data
	}
	e.Data["session_id"] = s.id

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Warn("event dropped for slow subscriber", map[string]interface{}{
				"subscriber": id,
				"event":      e.Type,
			})
		}
	}
}
