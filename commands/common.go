package commands

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zeu5/rps-arena/config"
	"github.com/zeu5/rps-arena/datastore"
	"github.com/zeu5/rps-arena/dqn"
	"github.com/zeu5/rps-arena/orchestrator"
	"github.com/zeu5/rps-arena/policies"
	"github.com/zeu5/rps-arena/ppo"
	"github.com/zeu5/rps-arena/registry"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/transport"
	"github.com/zeu5/rps-arena/types"
	"k8s.io/klog/v2"
)

// interruptContext is cancelled on os.Interrupt or when stop is called
func interruptContext() (context.Context, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	doneCh := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigCh:
			klog.Info("interrupted, stopping")
		case <-doneCh:
		}
		signal.Stop(sigCh)
		cancel()
	}()
	return ctx, func() { close(doneCh) }
}

// loadSettings reads the service config and the campaign file, the --trials flag wins over the file
func loadSettings() (*config.Config, *config.File, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	file := config.DefaultFile()
	if configFile != "" {
		if file, err = config.LoadFile(configFile); err != nil {
			return nil, nil, err
		}
	}
	if trials > 0 {
		file.Trials = trials
	}
	return cfg, file, nil
}

func redisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

// newRegistry stores the models in redis when REDIS_ADDR is set
func newRegistry(cfg *config.Config) registry.Registry {
	if cfg.RedisAddr == "" {
		return registry.NewMemoryRegistry()
	}
	return registry.NewRedisRegistry(redisClient(cfg), "")
}

// newDatastore prefers postgres, then redis, then memory
func newDatastore(cfg *config.Config) (datastore.Datastore, error) {
	switch {
	case cfg.DatabaseURL != "":
		return datastore.OpenPostgres(cfg.DatabaseURL)
	case cfg.RedisAddr != "":
		return datastore.NewRedisDatastore(redisClient(cfg), ""), nil
	}
	return datastore.NewMemoryDatastore(), nil
}

// players registered in a context
type players struct {
	context *types.Context
	softmax *policies.SoftmaxQ
	dqn     *dqn.Agent
	ppo     *ppo.Agent
}

// newPlayers registers the environment and every player, learning players start from the
// latest published models when there are some
func newPlayers(ctx context.Context, file *config.File, models registry.Registry) (*players, error) {
	c := types.NewContext("rps")
	r := policies.NewRand(0)
	softmax, err := policies.Register(c, r)
	if err != nil {
		return nil, err
	}
	if err := c.RegisterEnvironment(rps.Environment, ""); err != nil {
		return nil, err
	}

	dqnAgent := dqn.NewAgent(file.DQN, r, dqn.WithRegistry(models, dqn.ImplName))
	if err := dqn.Register(c, dqnAgent); err != nil {
		return nil, err
	}
	ppoAgent := ppo.NewAgent(file.PPO, r, ppo.WithRegistry(models, ppo.ImplName))
	if err := ppo.Register(c, ppoAgent); err != nil {
		return nil, err
	}
	for name, load := range map[string]func(context.Context) (int64, error){
		dqn.ImplName: dqnAgent.LoadLatest,
		ppo.ImplName: ppoAgent.LoadLatest,
	} {
		if _, err := load(ctx); err != nil && !errors.Is(err, registry.ErrModelNotFound) {
			klog.Warningf("loading %s model: %v", name, err)
		}
	}
	return &players{context: c, softmax: softmax, dqn: dqnAgent, ppo: ppoAgent}, nil
}

// localOrchestrator runs trials in process, remote endpoints are still reached over websocket
func localOrchestrator(cfg *config.Config, c *types.Context, store datastore.Datastore) *orchestrator.Orchestrator {
	oCfg := orchestrator.DefaultConfig()
	oCfg.JoinTimeout = cfg.JoinTimeout
	opts := make([]orchestrator.Option, 0)
	if store != nil {
		opts = append(opts, orchestrator.WithDatastore(store))
	}
	return orchestrator.New(oCfg, transport.NewResolver(c), opts...)
}

func shutdown(o *orchestrator.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		klog.Errorf("shutting down the orchestrator: %v", err)
	}
}
