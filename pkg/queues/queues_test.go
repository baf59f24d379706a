package queues

import (
	"os"
	"path/filepath"
	"testing"
)

func writeQueuesFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write queues file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeQueuesFile(t, "queues.yaml", `
queues:
  - id: fetch
    type: memory
  - id: notify
    type: sqs
    sqs:
      uri: "  https://sqs.us-east-1.amazonaws.com/123/notify  "
      region: us-east-1
`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 queues, got %d", len(reg.All()))
	}

	cfg, ok := reg.ByID("notify")
	if !ok {
		t.Fatalf("notify queue not found")
	}
	if cfg.SQS.QueueURL != "https://sqs.us-east-1.amazonaws.com/123/notify" {
		t.Fatalf("queue url not trimmed: %q", cfg.SQS.QueueURL)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeQueuesFile(t, "queues.json",
		`{"queues":[{"id":"fetch","type":"pubsub","pubsub":{"project_id":"p","topic":"t"}}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg, ok := reg.ByID("fetch")
	if !ok || cfg.Type != TypePubSub {
		t.Fatalf("fetch queue = %+v ok=%v", cfg, ok)
	}
}

func TestLoadRegistryRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty file", "queues: []\n"},
		{"missing id", "queues:\n  - type: memory\n"},
		{"missing type", "queues:\n  - id: fetch\n"},
		{"sqs without uri", "queues:\n  - id: fetch\n    type: sqs\n    sqs:\n      region: us-east-1\n"},
		{"pubsub without topic", "queues:\n  - id: fetch\n    type: pubsub\n    pubsub:\n      project_id: p\n"},
		{"duplicate id", "queues:\n  - id: fetch\n    type: memory\n  - id: fetch\n    type: memory\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeQueuesFile(t, "queues.yaml", tc.content)
			if _, err := LoadRegistry(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := LoadRegistry("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
