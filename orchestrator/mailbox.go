package orchestrator

import (
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// mailbox holds the messages until the next event of their receiver
type mailbox struct {
	envName  string
	toEnv    []types.Message
	toActors map[string][]types.Message
}

func newMailbox(envName string, actors []*actorSlot) *mailbox {
	m := &mailbox{
		envName:  envName,
		toEnv:    make([]types.Message, 0),
		toActors: make(map[string][]types.Message),
	}
	for _, a := range actors {
		m.toActors[a.params.Name] = make([]types.Message, 0)
	}
	return m
}

func (m *mailbox) route(msg types.Message) {
	switch {
	case msg.Receiver == m.envName:
		m.toEnv = append(m.toEnv, msg)
	case msg.Receiver == types.AllActors:
		for name := range m.toActors {
			if name != msg.Sender {
				m.toActors[name] = append(m.toActors[name], msg)
			}
		}
	default:
		if _, ok := m.toActors[msg.Receiver]; !ok {
			klog.V(1).Infof("dropping message from %s to unknown receiver %s", msg.Sender, msg.Receiver)
			return
		}
		m.toActors[msg.Receiver] = append(m.toActors[msg.Receiver], msg)
	}
}

func (m *mailbox) takeActor(name string) []types.Message {
	msgs := m.toActors[name]
	m.toActors[name] = make([]types.Message, 0)
	return msgs
}

func (m *mailbox) takeEnv() []types.Message {
	msgs := m.toEnv
	m.toEnv = make([]types.Message, 0)
	return msgs
}
