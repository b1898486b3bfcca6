// Package publish streams step snapshots to Redis so other processes can
// follow a run while it executes.
//
// Each step is stored under dyngraph:run:{run_id}:step:{t} and its number is
// appended to the list dyngraph:run:{run_id}:steps. A StepEvent is published
// on dyngraph:events:{run_id} after every step and once more when the run
// finishes. A finished run also sets dyngraph:run:{run_id}:done to its last
// step, so late subscribers can tell it will publish nothing more.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nvandessel/dyngraph/internal/snapshot"
)

const (
	runKeyPrefix          = "dyngraph:run:"    // dyngraph:run:{run_id}:...
	runEventChannelPrefix = "dyngraph:events:" // dyngraph:events:{run_id}

	// DefaultTTL bounds how long step snapshots stay in Redis.
	DefaultTTL = 24 * time.Hour
)

// ErrStepNotFound is returned when Redis holds no snapshot for a step.
var ErrStepNotFound = errors.New("step not published")

// StepEvent is the pub/sub payload announcing a step.
type StepEvent struct {
	RunID     string         `json:"run_id"`
	Step      int            `json:"step"`
	Key       string         `json:"key,omitempty"`
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	Stats     snapshot.Stats `json:"stats"`

	// Done marks the final event of a run.
	Done bool `json:"done,omitempty"`
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Publisher is a snapshot.Writer backed by Redis.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration

	lastRun  string
	lastStep int
}

// NewPublisher creates a publisher. A ttl of zero keeps keys forever.
func NewPublisher(client *redis.Client, ttl time.Duration) *Publisher {
	return &Publisher{client: client, ttl: ttl, lastStep: -1}
}

// WriteSnapshot stores the snapshot and announces it.
func (p *Publisher) WriteSnapshot(ctx context.Context, s *snapshot.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	stepKey := p.stepKey(s.RunID, s.Step)
	event, err := json.Marshal(StepEvent{
		RunID:     s.RunID,
		Step:      s.Step,
		Key:       stepKey,
		NodeCount: s.NodeCount,
		EdgeCount: s.EdgeCount,
		Stats:     s.Stats,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal step event: %w", err)
	}

	stepsKey := p.stepsKey(s.RunID)
	pipe := p.client.Pipeline()
	pipe.Set(ctx, stepKey, data, p.ttl)
	pipe.RPush(ctx, stepsKey, s.Step)
	if p.ttl > 0 {
		pipe.Expire(ctx, stepsKey, p.ttl)
	}
	pipe.Publish(ctx, p.eventChannel(s.RunID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish step %d: %w", s.Step, err)
	}

	p.lastRun, p.lastStep = s.RunID, s.Step
	return nil
}

// Finish marks the last run written as done and publishes its closing event.
func (p *Publisher) Finish(ctx context.Context) error {
	if p.lastRun == "" {
		return nil
	}
	event, err := json.Marshal(StepEvent{RunID: p.lastRun, Step: p.lastStep, Done: true})
	if err != nil {
		return fmt.Errorf("failed to marshal done event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.doneKey(p.lastRun), p.lastStep, p.ttl)
	pipe.Publish(ctx, p.eventChannel(p.lastRun), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish done event: %w", err)
	}
	return nil
}

// Done reports whether runID has finished and, if so, its last step.
func (p *Publisher) Done(ctx context.Context, runID string) (int, bool, error) {
	step, err := p.client.Get(ctx, p.doneKey(runID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to check run state: %w", err)
	}
	return step, true, nil
}

// LoadStep reads a published snapshot back.
func (p *Publisher) LoadStep(ctx context.Context, runID string, step int) (*snapshot.Snapshot, error) {
	data, err := p.client.Get(ctx, p.stepKey(runID, step)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: run %s step %d", ErrStepNotFound, runID, step)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return snapshot.Unmarshal(data)
}

// Steps lists the published step numbers of a run in publication order.
func (p *Publisher) Steps(ctx context.Context, runID string) ([]int, error) {
	raw, err := p.client.LRange(ctx, p.stepsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	steps := make([]int, 0, len(raw))
	for _, r := range raw {
		step, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("bad step entry %q: %w", r, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Subscribe listens for the events of runID. The subscription is confirmed
// before Subscribe returns, so no event published afterwards is missed.
func (p *Publisher) Subscribe(ctx context.Context, runID string) (*Subscription, error) {
	ps := p.client.Subscribe(ctx, p.eventChannel(runID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &Subscription{ps: ps}, nil
}

// Subscription delivers StepEvents for one run.
type Subscription struct {
	ps *redis.PubSub
}

// Next blocks until the next event arrives or ctx is done.
func (s *Subscription) Next(ctx context.Context) (StepEvent, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return StepEvent{}, err
	}
	var ev StepEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		return StepEvent{}, fmt.Errorf("failed to decode step event: %w", err)
	}
	return ev, nil
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.ps.Close()
}

func (p *Publisher) stepKey(runID string, step int) string {
	return fmt.Sprintf("%s%s:step:%d", runKeyPrefix, runID, step)
}

func (p *Publisher) stepsKey(runID string) string {
	return fmt.Sprintf("%s%s:steps", runKeyPrefix, runID)
}

func (p *Publisher) doneKey(runID string) string {
	return fmt.Sprintf("%s%s:done", runKeyPrefix, runID)
}

func (p *Publisher) eventChannel(runID string) string {
	return fmt.Sprintf("%s%s", runEventChannelPrefix, runID)
}
