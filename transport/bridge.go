package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// bridgeActor relays the session of the runtime to an actor implementation running at the other end of c.
// It returns once the trial is over for the actor and the remote implementation returned.
func bridgeActor(ctx context.Context, c *conn, s *types.ActorSession) error {
	s.Start()
	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		c.close()
	}()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-s.Events():
				if !ok {
					return nil
				}
				if err := c.write(Frame{Kind: FrameActorEvent, ActorEvent: &ev}); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			f, err := c.read()
			if err != nil {
				return errors.Wrap(err, "reading actor frames")
			}
			switch f.Kind {
			case FrameActorOutput:
				if f.ActorOutput == nil {
					continue
				}
				if err := s.Forward(*f.ActorOutput); err != nil {
					return err
				}
			case FrameDone:
				if f.Error != "" {
					return errors.Errorf("remote actor %s: %s", s.Name, f.Error)
				}
				return errRemoteDone
			default:
				klog.V(2).Infof("actor %s: ignoring %s frame", s.Name, f.Kind)
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, errRemoteDone) {
		return nil
	}
	return err
}

// bridgeEnvironment relays the session of the runtime to an environment running at the other end of c
func bridgeEnvironment(ctx context.Context, c *conn, s *types.EnvironmentSession) error {
	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		c.close()
	}()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-s.Events():
				if !ok {
					return nil
				}
				if err := c.write(Frame{Kind: FrameEnvironmentEvent, EnvironmentEvent: &ev}); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			f, err := c.read()
			if err != nil {
				return errors.Wrap(err, "reading environment frames")
			}
			switch f.Kind {
			case FrameEnvironmentOutput:
				if f.EnvironmentOutput == nil {
					continue
				}
				if err := s.Forward(*f.EnvironmentOutput); err != nil {
					return err
				}
			case FrameDone:
				if f.Error != "" {
					return errors.Errorf("remote environment %s: %s", s.Name, f.Error)
				}
				return errRemoteDone
			default:
				klog.V(2).Infof("environment %s: ignoring %s frame", s.Name, f.Kind)
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, errRemoteDone) {
		return nil
	}
	return err
}

// runActor runs impl on a session fed by the frames of c, until the final event or the connection closes
func runActor(ctx context.Context, c *conn, init *InitFrame, impl types.ActorImpl) error {
	if init.Actor == nil {
		return errors.Wrap(ErrUnexpectedFrame, "init frame without actor")
	}
	s := types.NewActorSession(init.TrialID, *init.Actor, init.Config)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeEvents sync.Once
	endEvents := func() { closeEvents.Do(s.CloseEvents) }

	implDone := make(chan error, 1)
	go func() {
		err := impl(ctx, s)
		s.Close()
		implDone <- err
	}()
	go func() {
		for {
			select {
			case <-s.Done():
				return
			case out := <-s.Outputs():
				if err := c.write(Frame{Kind: FrameActorOutput, ActorOutput: &out}); err != nil {
					klog.V(1).Infof("actor %s: %v", s.Name, err)
					cancel()
					return
				}
			}
		}
	}()
	go func() {
		defer endEvents()
		for {
			f, err := c.read()
			if err != nil {
				if !isClosed(err) {
					klog.V(1).Infof("actor %s: connection lost: %v", s.Name, err)
				}
				cancel()
				return
			}
			if f.Kind != FrameActorEvent || f.ActorEvent == nil {
				continue
			}
			if err := s.Deliver(ctx, *f.ActorEvent); err != nil {
				return
			}
			if f.ActorEvent.Type == types.EventFinal {
				return
			}
		}
	}()

	err := <-implDone
	if werr := c.write(doneFrame(err)); werr != nil {
		klog.V(1).Infof("actor %s: %v", s.Name, werr)
	}
	return err
}

// runEnvironment runs impl on a session fed by the frames of c
func runEnvironment(ctx context.Context, c *conn, init *InitFrame, impl types.EnvironmentImpl) error {
	s := types.NewEnvironmentSession(init.TrialID, init.EnvironmentName, init.Implementation, init.Actors, init.Config)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeEvents sync.Once
	endEvents := func() { closeEvents.Do(s.CloseEvents) }

	implDone := make(chan error, 1)
	go func() {
		err := impl(ctx, s)
		s.Close()
		implDone <- err
	}()
	go func() {
		for {
			select {
			case <-s.Done():
				return
			case out := <-s.Outputs():
				if err := c.write(Frame{Kind: FrameEnvironmentOutput, EnvironmentOutput: &out}); err != nil {
					klog.V(1).Infof("environment %s: %v", s.Name, err)
					cancel()
					return
				}
			}
		}
	}()
	go func() {
		defer endEvents()
		for {
			f, err := c.read()
			if err != nil {
				if !isClosed(err) {
					klog.V(1).Infof("environment %s: connection lost: %v", s.Name, err)
				}
				cancel()
				return
			}
			if f.Kind != FrameEnvironmentEvent || f.EnvironmentEvent == nil {
				continue
			}
			if err := s.Deliver(ctx, *f.EnvironmentEvent); err != nil {
				return
			}
			if f.EnvironmentEvent.Type == types.EventFinal {
				return
			}
		}
	}()

	err := <-implDone
	if werr := c.write(doneFrame(err)); werr != nil {
		klog.V(1).Infof("environment %s: %v", s.Name, werr)
	}
	return err
}
