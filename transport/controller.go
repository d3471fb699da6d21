package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// Controller drives trials through the API of a remote orchestrator
type Controller struct {
	address string
	client  *http.Client
}

var _ types.TrialRunner = &Controller{}

func NewController(endpoint string) (*Controller, error) {
	e, err := types.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if e.Kind != types.EndpointRemote {
		return nil, errors.Errorf("orchestrator endpoint %s is not a network address", endpoint)
	}
	return &Controller{
		address: e.Address(),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Controller) url(path string, query url.Values) string {
	u := url.URL{Scheme: "http", Host: c.address, Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Controller) wsURL(path string, query url.Values) string {
	u := url.URL{Scheme: "ws", Host: c.address, Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends the request and decodes the JSON answer into out, if not nil
func (c *Controller) do(ctx context.Context, method, u string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= 300 {
		apiErr := struct {
			Error string `json:"error"`
		}{}
		json.Unmarshal(bs, &apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(bs, out), "decoding response")
}

// APIError is an error answered by the orchestrator
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orchestrator answered %d: %s", e.Status, e.Message)
}

func (c *Controller) StartTrial(ctx context.Context, params *types.TrialParameters, trialID string) (string, error) {
	resp := StartTrialResponse{}
	err := c.do(ctx, http.MethodPost, c.url("/trials", nil), StartTrialRequest{TrialID: trialID, Parameters: *params}, &resp)
	return resp.TrialID, err
}

func (c *Controller) TerminateTrial(ctx context.Context, trialID string, hard bool) error {
	q := url.Values{"hard": []string{strconv.FormatBool(hard)}}
	return c.do(ctx, http.MethodDelete, c.url("/trials/"+url.PathEscape(trialID), q), nil, nil)
}

func (c *Controller) GetTrialInfo(ctx context.Context, trialID string) (types.TrialInfo, error) {
	info := types.TrialInfo{}
	err := c.do(ctx, http.MethodGet, c.url("/trials/"+url.PathEscape(trialID), nil), nil, &info)
	return info, err
}

func (c *Controller) Trials(ctx context.Context, states ...types.TrialState) ([]types.TrialInfo, error) {
	out := make([]types.TrialInfo, 0)
	err := c.do(ctx, http.MethodGet, c.url("/trials", stateQuery(states)), nil, &out)
	return out, err
}

func (c *Controller) Samples(ctx context.Context, trialID string) (*types.Trace, error) {
	trace := types.NewTrace()
	err := c.do(ctx, http.MethodGet, c.url("/trials/"+url.PathEscape(trialID)+"/samples", nil), nil, trace)
	return trace, err
}

func stateQuery(states []types.TrialState) url.Values {
	if len(states) == 0 {
		return nil
	}
	q := url.Values{}
	for _, s := range states {
		q.Add("state", s.String())
	}
	return q
}

// WatchTrials streams the trial infos matching the states until ctx is done or the connection closes
func (c *Controller) WatchTrials(ctx context.Context, states ...types.TrialState) (<-chan types.TrialInfo, error) {
	conn, err := dial(ctx, c.wsURL("/trials/watch", stateQuery(states)))
	if err != nil {
		return nil, err
	}
	out := make(chan types.TrialInfo)
	go func() {
		<-ctx.Done()
		conn.close()
	}()
	go func() {
		defer close(out)
		for {
			info := types.TrialInfo{}
			if err := conn.ws.ReadJSON(&info); err != nil {
				if ctx.Err() == nil && !isClosed(err) {
					klog.V(1).Infof("watching trials: %v", err)
				}
				return
			}
			select {
			case out <- info:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// JoinTrial runs impl as the client actor actorName of the trial, returns once the trial is over for it
func (c *Controller) JoinTrial(ctx context.Context, trialID, actorName string, impl types.ActorImpl) error {
	q := url.Values{"actor": []string{actorName}}
	conn, err := dial(ctx, c.wsURL("/trials/"+url.PathEscape(trialID)+"/join", q))
	if err != nil {
		return err
	}
	defer conn.close()
	f, err := conn.read()
	if err != nil {
		return errors.Wrap(err, "waiting for the trial")
	}
	switch f.Kind {
	case FrameInit:
	case FrameDone:
		return errors.Errorf("joining trial %s: %s", trialID, f.Error)
	default:
		return errors.Wrapf(ErrUnexpectedFrame, "expected init, got %s", f.Kind)
	}
	return runActor(ctx, conn, f.Init, impl)
}

// RunTrial starts the trial, waits for it to end and fetches its samples
func (c *Controller) RunTrial(ctx context.Context, params *types.TrialParameters, report *types.TrialReport) (*types.Trace, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ended, err := c.WatchTrials(watchCtx, types.TrialEnded)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	id, err := c.StartTrial(ctx, params, "")
	if err != nil {
		return nil, err
	}
	if report != nil {
		report.TrialID = id
	}
	for info := range ended {
		if info.TrialID != id {
			continue
		}
		if report != nil {
			report.SetTick(info.TickID)
			report.AddTimeEntry(time.Since(start), "trial_duration", "Controller.RunTrial")
		}
		if info.Error != "" {
			return nil, errors.Errorf("trial %s: %s", id, info.Error)
		}
		return c.Samples(ctx, id)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, errors.Errorf("trial %s: watch closed before the end", id)
}
