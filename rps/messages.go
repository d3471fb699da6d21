package rps

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DefaultTargetScore is used when the configuration is absent or negative
const DefaultTargetScore = 3

// ActorClass is the only actor class of the game
const ActorClass = "player"

var (
	ErrInvalidAction      = errors.New("invalid player action")
	ErrInvalidObservation = errors.New("invalid observation")
)

type PlayerAction struct {
	Move Move `json:"move"`
}

type PlayerState struct {
	WonLast  bool `json:"won_last"`
	LastMove Move `json:"last_move"`
	Score    int  `json:"score"`
}

type Observation struct {
	Me         PlayerState `json:"me"`
	Them       PlayerState `json:"them"`
	GameIndex  int         `json:"game_index"`
	RoundIndex int         `json:"round_index"`
}

// Outcome of the last round from the observing player point of view
func (o *Observation) Outcome() int {
	return Outcome(o.Me.LastMove, o.Them.LastMove)
}

// FirstRound is true before any move was played in the trial
func (o *Observation) FirstRound() bool {
	return o.Me.LastMove == None && o.Them.LastMove == None
}

type EnvironmentConfig struct {
	TargetScore int `json:"target_score" yaml:"target_score" mapstructure:"target_score"`
	// GamesCount is the number of games of the trial, one when not set
	GamesCount int `json:"games_count,omitempty" yaml:"games_count" mapstructure:"games_count"`
}

// Target score to win a game
func (c *EnvironmentConfig) Target() int {
	if c == nil || c.TargetScore < 0 {
		return DefaultTargetScore
	}
	return c.TargetScore
}

// Games of the trial
func (c *EnvironmentConfig) Games() int {
	if c == nil || c.GamesCount < 1 {
		return 1
	}
	return c.GamesCount
}

type TrialConfig struct {
	Environment *EnvironmentConfig `json:"environment,omitempty" yaml:"environment" mapstructure:"environment"`
}

func EncodeAction(m Move) (json.RawMessage, error) {
	return json.Marshal(PlayerAction{Move: m})
}

// DecodeAction rejects actions without a playable move
func DecodeAction(raw json.RawMessage) (*PlayerAction, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidAction, "empty action")
	}
	a := &PlayerAction{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, errors.Wrapf(ErrInvalidAction, "%v", err)
	}
	if !a.Move.Valid() {
		return nil, errors.Wrapf(ErrInvalidAction, "move %s", a.Move)
	}
	return a, nil
}

func EncodeObservation(o *Observation) (json.RawMessage, error) {
	return json.Marshal(o)
}

func DecodeObservation(raw json.RawMessage) (*Observation, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidObservation, "empty observation")
	}
	o := &Observation{}
	if err := json.Unmarshal(raw, o); err != nil {
		return nil, errors.Wrapf(ErrInvalidObservation, "%v", err)
	}
	return o, nil
}

// DecodeEnvironmentConfig accepts an EnvironmentConfig or a TrialConfig, nil when raw is empty
func DecodeEnvironmentConfig(raw json.RawMessage) (*EnvironmentConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var c struct {
		TargetScore *int               `json:"target_score"`
		GamesCount  int                `json:"games_count"`
		Environment *EnvironmentConfig `json:"environment"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrap(err, "decoding environment config")
	}
	if c.Environment != nil {
		return c.Environment, nil
	}
	if c.TargetScore == nil && c.GamesCount == 0 {
		return nil, nil
	}
	config := &EnvironmentConfig{TargetScore: DefaultTargetScore, GamesCount: c.GamesCount}
	if c.TargetScore != nil {
		config.TargetScore = *c.TargetScore
	}
	return config, nil
}

// EncodeTrialConfig builds the trial config carrying the environment config
func EncodeTrialConfig(c *EnvironmentConfig) (json.RawMessage, error) {
	return json.Marshal(TrialConfig{Environment: c})
}
