package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"
)

// Config of the services, read from the environment and an optional .env file
type Config struct {
	OrchestratorHost string
	OrchestratorPort int

	EnvironmentHost string
	EnvironmentPort int

	// scripted and tabular players, RANDOM_AGENT_HOST/PORT are used when ACTORS_HOST/PORT are not set
	ActorsHost string
	ActorsPort int

	// learning players
	DQNAgentHost string
	DQNAgentPort int

	WebClientPort int

	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	JoinTimeout time.Duration
	// TrialsFile holds the campaign parameters, see File
	TrialsFile string
}

// LoadConfig loads the .env files (".env" when none is given) and then the environment
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			klog.V(1).Infof("skipping env file %s: %v", f, err)
		}
	}

	c := &Config{}
	loadEnvString(&c.OrchestratorHost, "ORCHESTRATOR_HOST", "localhost")
	if err := loadEnvInt(&c.OrchestratorPort, "ORCHESTRATOR_PORT", 9000); err != nil {
		return nil, err
	}
	loadEnvString(&c.EnvironmentHost, "ENVIRONMENT_HOST", "localhost")
	if err := loadEnvInt(&c.EnvironmentPort, "ENVIRONMENT_PORT", 9001); err != nil {
		return nil, err
	}
	var randomAgentHost string
	var randomAgentPort int
	loadEnvString(&randomAgentHost, "RANDOM_AGENT_HOST", "localhost")
	if err := loadEnvInt(&randomAgentPort, "RANDOM_AGENT_PORT", 9002); err != nil {
		return nil, err
	}
	loadEnvString(&c.ActorsHost, "ACTORS_HOST", randomAgentHost)
	if err := loadEnvInt(&c.ActorsPort, "ACTORS_PORT", randomAgentPort); err != nil {
		return nil, err
	}
	loadEnvString(&c.DQNAgentHost, "DQN_AGENT_HOST", "localhost")
	if err := loadEnvInt(&c.DQNAgentPort, "DQN_AGENT_PORT", 9003); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&c.WebClientPort, "WEB_CLIENT_PORT", 8080); err != nil {
		return nil, err
	}

	loadEnvString(&c.RedisAddr, "REDIS_ADDR", "")
	loadEnvString(&c.RedisPassword, "REDIS_PASSWORD", "")
	loadEnvString(&c.DatabaseURL, "DATABASE_URL", "")

	if err := loadEnvDuration(&c.JoinTimeout, "JOIN_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	loadEnvString(&c.TrialsFile, "TRIALS_FILE", "")
	return c, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var problems []string
	ports := []struct {
		key  string
		port int
	}{
		{"ORCHESTRATOR_PORT", c.OrchestratorPort},
		{"ENVIRONMENT_PORT", c.EnvironmentPort},
		{"ACTORS_PORT", c.ActorsPort},
		{"DQN_AGENT_PORT", c.DQNAgentPort},
		{"WEB_CLIENT_PORT", c.WebClientPort},
	}
	for _, p := range ports {
		if p.port < 1 || p.port > 65535 {
			problems = append(problems, p.key+" must be between 1 and 65535")
		}
	}
	if c.JoinTimeout < 0 {
		problems = append(problems, "JOIN_TIMEOUT must not be negative")
	}
	if c.DatabaseURL != "" && !strings.HasPrefix(c.DatabaseURL, "postgres") {
		problems = append(problems, "DATABASE_URL must be a postgres url")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func endpoint(host string, port int) string {
	return fmt.Sprintf("grpc://%s:%d", host, port)
}

func (c *Config) OrchestratorEndpoint() string {
	return endpoint(c.OrchestratorHost, c.OrchestratorPort)
}

func (c *Config) EnvironmentEndpoint() string {
	return endpoint(c.EnvironmentHost, c.EnvironmentPort)
}

func (c *Config) ActorsEndpoint() string {
	return endpoint(c.ActorsHost, c.ActorsPort)
}

func (c *Config) DQNAgentEndpoint() string {
	return endpoint(c.DQNAgentHost, c.DQNAgentPort)
}

// Address to listen on for the given port
func Address(port int) string {
	return fmt.Sprintf(":%d", port)
}
