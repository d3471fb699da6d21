package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/ppo"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
	"github.com/zeu5/rps-arena/util"
	"gopkg.in/yaml.v3"
)

// File describes a campaign of trials and the learning players hyperparameters
//
// Participants with an empty endpoint are reached at the services of the Config,
// use `local` to run them in process.
type File struct {
	Trials            int                    `yaml:"trials" mapstructure:"trials"`
	Trial             types.TrialParameters  `yaml:"trial" mapstructure:"trial"`
	EnvironmentConfig *rps.EnvironmentConfig `yaml:"environment_config" mapstructure:"environment_config"`
	DQN               dqn.Hyperparameters    `yaml:"dqn" mapstructure:"dqn"`
	PPO               ppo.Hyperparameters    `yaml:"ppo" mapstructure:"ppo"`
}

// DefaultFile plays the heuristic player against the random player, first to 5
func DefaultFile() *File {
	return &File{
		Trials: 1,
		Trial: types.TrialParameters{
			Environment: types.EnvironmentParameters{Name: "env"},
			Actors: []types.ActorParameters{
				{Name: "Bob", ClassName: rps.ActorClass, Implementation: policies.HeuristicAgent},
				{Name: "Alice", ClassName: rps.ActorClass, Implementation: policies.RandomAgent},
			},
			MaxInactivity: 30 * time.Second,
		},
		EnvironmentConfig: &rps.EnvironmentConfig{TargetScore: 5},
		DQN:               dqn.DefaultHyperparameters(),
		PPO:               ppo.DefaultHyperparameters(),
	}
}

// LoadFile reads a yaml campaign file over the defaults
func LoadFile(path string) (*File, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	f := DefaultFile()
	if vp.IsSet("trial.actors") {
		f.Trial.Actors = nil
	}
	if err := vp.Unmarshal(f); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if f.Trials < 1 {
		f.Trials = 1
	}
	return f, nil
}

// Save writes the file as yaml
func (f *File) Save(path string) error {
	bs, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encoding campaign file")
	}
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, bs, 0644), "writing %s", path)
}

// TrialParameters of the campaign trials, empty endpoints resolved against c
func (f *File) TrialParameters(c *Config) (*types.TrialParameters, error) {
	params := f.Trial
	params.Actors = make([]types.ActorParameters, len(f.Trial.Actors))
	copy(params.Actors, f.Trial.Actors)

	if f.EnvironmentConfig != nil {
		raw, err := rps.EncodeTrialConfig(f.EnvironmentConfig)
		if err != nil {
			return nil, err
		}
		params.Config = raw
	}
	if c != nil {
		if params.Environment.Endpoint == "" {
			params.Environment.Endpoint = c.EnvironmentEndpoint()
		}
		for i, a := range params.Actors {
			if a.Endpoint != "" {
				continue
			}
			switch a.Implementation {
			case dqn.ImplName, ppo.ImplName:
				params.Actors[i].Endpoint = c.DQNAgentEndpoint()
			default:
				params.Actors[i].Endpoint = c.ActorsEndpoint()
			}
		}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// Local runs every participant in process
func (f *File) Local() *File {
	local := *f
	local.Trial.Environment.Endpoint = types.LocalEndpoint
	local.Trial.Actors = make([]types.ActorParameters, len(f.Trial.Actors))
	for i, a := range f.Trial.Actors {
		if a.Endpoint != types.ClientEndpoint {
			a.Endpoint = types.LocalEndpoint
		}
		local.Trial.Actors[i] = a
	}
	return &local
}
