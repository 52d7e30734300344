package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultReplayIdle = 2 * time.Second

// ReplayOptions — параметры переигрывания DLQ.
type ReplayOptions struct {
	SourceTopic string
	TargetTopic string
	// Limit ограничивает число просмотренных сообщений на все партиции.
	Limit int
	// IdleTimeout — сколько ждать новых сообщений партиции, прежде чем перейти к следующей.
	IdleTimeout time.Duration
	// DryRun только считает сообщения, ничего не публикуя.
	DryRun bool
}

// ReplayResult — итог переигрывания.
type ReplayResult struct {
	Scanned  int
	Replayed int
	Skipped  int
}

// Replayer читает DLQ и возвращает сообщения в основной topic.
type Replayer struct {
	consumer sarama.Consumer
	producer *Producer
	logger   *log.Entry
}

// NewReplayer создаёт Replayer. producer может быть nil для dry-run.
func NewReplayer(consumer sarama.Consumer, producer *Producer, logger *log.Entry) *Replayer {
	if logger == nil {
		logger = log.WithField("component", "dlq-replay")
	}
	return &Replayer{consumer: consumer, producer: producer, logger: logger}
}

// Run проходит партиции SourceTopic с самого старого offset.
func (r *Replayer) Run(ctx context.Context, opts ReplayOptions) (ReplayResult, error) {
	if opts.SourceTopic == "" {
		opts.SourceTopic = TopicDeadLetterQueue
	}
	if opts.TargetTopic == "" {
		opts.TargetTopic = TopicOrderEvents
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultReplayIdle
	}
	if opts.Limit <= 0 {
		return ReplayResult{}, errors.New("replay limit must be > 0")
	}
	if !opts.DryRun && r.producer == nil {
		return ReplayResult{}, errors.New("producer is required to replay messages")
	}

	partitions, err := r.consumer.Partitions(opts.SourceTopic)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("list partitions of %s: %w", opts.SourceTopic, err)
	}

	var result ReplayResult
	for _, partition := range partitions {
		if result.Scanned >= opts.Limit {
			break
		}
		if err := r.replayPartition(ctx, partition, opts, &result); err != nil {
			return result, err
		}
	}

	r.logger.WithFields(log.Fields{
		"scanned":  result.Scanned,
		"replayed": result.Replayed,
		"skipped":  result.Skipped,
		"dry_run":  opts.DryRun,
	}).Info("dlq replay finished")
	return result, nil
}

func (r *Replayer) replayPartition(ctx context.Context, partition int32, opts ReplayOptions, result *ReplayResult) error {
	pc, err := r.consumer.ConsumePartition(opts.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("consume %s/%d: %w", opts.SourceTopic, partition, err)
	}
	defer pc.Close()

	idle := time.NewTimer(opts.IdleTimeout)
	defer idle.Stop()

	for result.Scanned < opts.Limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case cerr, ok := <-pc.Errors():
			if ok && cerr != nil {
				return fmt.Errorf("consume %s/%d: %w", opts.SourceTopic, partition, cerr.Err)
			}
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			result.Scanned++
			if err := r.replayMessage(msg, opts); err != nil {
				if errors.Is(err, errNotReplayable) {
					result.Skipped++
					r.logger.WithError(err).WithField("offset", msg.Offset).Warn("skip dlq message")
				} else {
					return err
				}
			} else {
				result.Replayed++
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(opts.IdleTimeout)
		}
	}
	return nil
}

var errNotReplayable = errors.New("message is not replayable")

func (r *Replayer) replayMessage(msg *sarama.ConsumerMessage, opts ReplayOptions) error {
	var letter domain.DeadLetter
	if err := json.Unmarshal(msg.Value, &letter); err != nil {
		return fmt.Errorf("%w: %v", errNotReplayable, err)
	}
	if letter.OutboxID == "" || letter.EventType == "" || !json.Valid(letter.Payload) {
		return fmt.Errorf("%w: incomplete dead letter at offset %d", errNotReplayable, msg.Offset)
	}
	if opts.DryRun {
		return nil
	}

	env := Envelope{
		ID:            letter.OutboxID,
		AggregateType: letter.AggregateType,
		AggregateID:   letter.AggregateID,
		EventType:     letter.EventType,
		Payload:       letter.Payload,
		PublishedAt:   r.producer.now(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal replay envelope: %w", err)
	}

	headers := env.headers()
	headers[HeaderReplayedFrom] = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)

	key := letter.AggregateID
	if key == "" {
		key = letter.OutboxID
	}
	return r.producer.Send(opts.TargetTopic, key, body, headers)
}
