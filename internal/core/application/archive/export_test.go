package archive

func (s *Service) SetClock(now func() int64) {
	s.now = now
}
