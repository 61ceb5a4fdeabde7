package planchange

// FlowCount número de flujos retenidos en memoria.
func (s *Service) FlowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}
