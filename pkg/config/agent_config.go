// Package config provides configuration loading for the agent.
package config

import (
	"fmt"
	"os"

	"github.com/bryan-essi/mobiq/pkg/scheduler"
	"gopkg.in/yaml.v3"
)

// AgentConfigFile is the structure of the agent's YAML config file. All
// sections are optional; flags and environment variables cover the rest.
type AgentConfigFile struct {
	Queue     QueueConfig       `yaml:"queue"`
	Schedules []scheduler.Entry `yaml:"schedules"`
}

// QueueConfig configures the Redis run-request intake.
type QueueConfig struct {
	Addr     string `yaml:"addr"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadAgentConfig reads and parses the agent config file.
func LoadAgentConfig(path string) (*AgentConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AgentConfigFile

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}
