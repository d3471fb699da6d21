package types

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrAlreadyRegistered is returned when an implementation name is registered twice
var ErrAlreadyRegistered = errors.New("implementation already registered")

// DefaultEnvironmentImpl is the implementation name used when none is specified
const DefaultEnvironmentImpl = "default"

// RegisteredActor is an actor implementation available for a set of actor classes
type RegisteredActor struct {
	ImplName     string
	ActorClasses []string
	Impl         ActorImpl
}

// Context holds the implementations registered by a service
// It is shared between the orchestrator (in-process implementations)
// and the transport server (implementations served to remote orchestrators)
type Context struct {
	UserID string

	lock         *sync.RWMutex
	actors       map[string]*RegisteredActor
	environments map[string]EnvironmentImpl
}

func NewContext(userID string) *Context {
	return &Context{
		UserID:       userID,
		lock:         new(sync.RWMutex),
		actors:       make(map[string]*RegisteredActor),
		environments: make(map[string]EnvironmentImpl),
	}
}

// RegisterActor makes the implementation available under implName for the given classes
func (c *Context) RegisterActor(impl ActorImpl, implName string, actorClasses ...string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.actors[implName]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "actor implementation %q", implName)
	}
	if len(actorClasses) == 0 {
		return errors.Errorf("actor implementation %q registered without actor classes", implName)
	}
	c.actors[implName] = &RegisteredActor{
		ImplName:     implName,
		ActorClasses: actorClasses,
		Impl:         impl,
	}
	return nil
}

// RegisterEnvironment makes the implementation available under implName (DefaultEnvironmentImpl if empty)
func (c *Context) RegisterEnvironment(impl EnvironmentImpl, implName string) error {
	if implName == "" {
		implName = DefaultEnvironmentImpl
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.environments[implName]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "environment implementation %q", implName)
	}
	c.environments[implName] = impl
	return nil
}

// Actor returns the implementation registered under implName that can play className
func (c *Context) Actor(implName, className string) (ActorImpl, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	a, ok := c.actors[implName]
	if !ok {
		return nil, false
	}
	for _, class := range a.ActorClasses {
		if class == className {
			return a.Impl, true
		}
	}
	return nil, false
}

// Environment returns the environment implementation registered under implName
func (c *Context) Environment(implName string) (EnvironmentImpl, bool) {
	if implName == "" {
		implName = DefaultEnvironmentImpl
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	e, ok := c.environments[implName]
	return e, ok
}

// ActorImpls lists the registered actor implementation names, sorted
func (c *Context) ActorImpls() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]string, 0, len(c.actors))
	for name := range c.actors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EnvironmentImpls lists the registered environment implementation names, sorted
func (c *Context) EnvironmentImpls() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]string, 0, len(c.environments))
	for name := range c.environments {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
