package queues

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported queue backend types.
	TypeSQS    = "sqs"
	TypePubSub = "pubsub"
	TypeMemory = "memory"
)

// configFile represents the structure of the queues configuration file.
type configFile struct {
	Queues []QueueConfig `json:"queues" yaml:"queues"`
}

// QueueConfig represents a single queue entry declared in config files.
type QueueConfig struct {
	ID     string             `json:"id" yaml:"id"`
	Type   string             `json:"type" yaml:"type"`
	SQS    *SQSQueueConfig    `json:"sqs" yaml:"sqs"`
	PubSub *PubSubQueueConfig `json:"pubsub" yaml:"pubsub"`
}

// SQSQueueConfig holds AWS SQS specific settings.
type SQSQueueConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
	// Optional static credentials; the default AWS chain applies when unset.
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// PubSubQueueConfig holds GCP Pub/Sub specific settings.
type PubSubQueueConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// ConfigRegistry materializes queue definitions loaded from config files.
type ConfigRegistry struct {
	mu     sync.RWMutex
	queues []QueueConfig
	idx    map[string]QueueConfig
}

// LoadRegistry loads the queue registry from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("queues file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queues file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read queues file: %w", err)
	}

	fileReg, err := parseQueueRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Queues) == 0 {
		return nil, errors.New("queues file contains no queues entries")
	}

	reg := &ConfigRegistry{
		queues: make([]QueueConfig, len(fileReg.Queues)),
		idx:    make(map[string]QueueConfig, len(fileReg.Queues)),
	}

	for i := range fileReg.Queues {
		cfg := sanitizeQueueConfig(fileReg.Queues[i])
		if err := validateQueueConfig(cfg); err != nil {
			return nil, fmt.Errorf("queues[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate queue id %q", cfg.ID)
		}
		reg.queues[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseQueueRegistry attempts to decode the queues file content.
func parseQueueRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalQueueRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("queues file format not recognized (expected YAML or JSON)")
}

// unmarshalQueueRegistry decodes the queues file using the provided function.
func unmarshalQueueRegistry(name string, data []byte, fn func([]byte, any) error) (configFile, error) {
	var reg configFile
	if err := fn(data, &reg); err != nil {
		return configFile{}, fmt.Errorf("decode %s queues: %w", name, err)
	}
	return reg, nil
}

// sanitizeQueueConfig trims and normalizes the queue config fields.
func sanitizeQueueConfig(cfg QueueConfig) QueueConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
		c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
		cfg.SQS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.Topic = strings.TrimSpace(c.Topic)
		c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
		cfg.PubSub = &c
	}

	return cfg
}

// validateQueueConfig checks that required fields are present.
func validateQueueConfig(cfg QueueConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for queue %q", cfg.ID)
	}
	if cfg.Type == TypeSQS {
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for queue %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for queue %q", cfg.ID)
		}
		if cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for queue %q", cfg.ID)
		}
	}
	if cfg.Type == TypePubSub {
		if cfg.PubSub == nil {
			return fmt.Errorf("pubsub config required for queue %q", cfg.ID)
		}
		if cfg.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id is required for queue %q", cfg.ID)
		}
		if cfg.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.topic is required for queue %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the queue config by id.
func (r *ConfigRegistry) ByID(id string) (QueueConfig, bool) {
	if r == nil {
		return QueueConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return QueueConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured queues.
func (r *ConfigRegistry) All() []QueueConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]QueueConfig, len(r.queues))
	copy(out, r.queues)
	return out
}
