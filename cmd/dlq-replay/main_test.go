package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func getenv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig([]string{"-brokers", " k1:9092 ,,k2:9092 "}, getenv(nil))
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.brokers[0] != "k1:9092" || cfg.brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.brokers)
	}
	if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
	}
	if cfg.limit != defaultReplayLimit || cfg.idleTimeout != defaultIdleTimeout {
		t.Fatalf("unexpected limits: %d %s", cfg.limit, cfg.idleTimeout)
	}
	if cfg.execute {
		t.Fatal("dry-run must be the default")
	}
}

func TestReadConfig_BrokersFromEnv(t *testing.T) {
	cfg, err := readConfig(nil, getenv(map[string]string{envKafkaBrokers: "k3:9092"}))
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if len(cfg.brokers) != 1 || cfg.brokers[0] != "k3:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.brokers)
	}
}

func TestReadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no brokers", args: nil, want: "brokers are required"},
		{name: "empty source", args: []string{"-brokers=k", "-source-topic="}, want: "source-topic"},
		{name: "same topics", args: []string{"-brokers=k", "-source-topic=a", "-target-topic=a"}, want: "must differ"},
		{name: "bad limit", args: []string{"-brokers=k", "-limit=0"}, want: "limit"},
		{name: "bad idle", args: []string{"-brokers=k", "-idle-timeout=0s"}, want: "idle-timeout"},
		{name: "unknown flag", args: []string{"-from-newest"}, want: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readConfig(tt.args, getenv(nil))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_DryRunWithEmptyTopic(t *testing.T) {
	original := newReplayDependencies
	defer func() { newReplayDependencies = original }()

	newReplayDependencies = func(cfg config) (sarama.Consumer, *kafka.Producer, error) {
		consumer := mocks.NewConsumer(t, nil)
		consumer.SetTopicMetadata(map[string][]int32{cfg.sourceTopic: {}})
		return consumer, nil, nil
	}

	err := run(context.Background(), config{
		brokers:     []string{"k1:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       10,
		idleTimeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_DependencyError(t *testing.T) {
	original := newReplayDependencies
	defer func() { newReplayDependencies = original }()

	boom := errors.New("no brokers reachable")
	newReplayDependencies = func(config) (sarama.Consumer, *kafka.Producer, error) {
		return nil, nil, boom
	}

	if err := run(context.Background(), config{limit: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
