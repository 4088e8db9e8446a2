package chatview

import "github.com/vovakirdan/wirechat-client/internal/core"

// event is processed on the Run goroutine.
type event interface {
	apply(s *Synchronizer)
}

type selectEvent struct {
	key   core.ConversationKey
	reply chan<- View
}

func (e selectEvent) apply(s *Synchronizer) {
	s.startSession(e.key)
	s.publish()
	e.reply <- s.view()
}

type clearEvent struct {
	reply chan<- View
}

func (e clearEvent) apply(s *Synchronizer) {
	active := s.session != nil
	s.endSession()
	if active {
		s.publish()
	}
	e.reply <- s.view()
}

type historyEvent struct {
	token uint64
	msgs  []core.Message
	err   error
}

func (e historyEvent) apply(s *Synchronizer) {
	s.applyHistory(e)
}

type liveEvent struct {
	token uint64
	key   core.ConversationKey
	msg   core.Message
}

func (e liveEvent) apply(s *Synchronizer) {
	s.applyLive(e)
}

type snapshotEvent struct {
	reply chan<- View
}

func (e snapshotEvent) apply(s *Synchronizer) {
	e.reply <- s.view()
}

type statsEvent struct {
	reply chan<- Stats
}

func (e statsEvent) apply(s *Synchronizer) {
	e.reply <- s.stats
}
