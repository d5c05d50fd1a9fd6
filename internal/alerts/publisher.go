package alerts

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/internal/fraud"
)

// Subjects carrying detector findings to downstream review queues, under the
// default "fraud.signals" prefix.
const (
	SubjectMultiLocation  = "fraud.signals.multi_location"
	SubjectFailedClusters = "fraud.signals.failed_clusters"
	SubjectTopAgents      = "fraud.signals.top_agents"
)

// Event types stamped on the bus envelope.
const (
	TypeMultiLocationDetected  = "fraud.multi_location.detected"
	TypeFailedClustersDetected = "fraud.failed_clusters.detected"
	TypeTopAgentsRanked        = "fraud.top_agents.ranked"
)

// EventPublisher is the bus surface the alert publisher needs.
type EventPublisher interface {
	Publish(ctx context.Context, subject, eventType string, data interface{}) error
}

// MultiLocationBatch is the payload published for the multi-location detector.
type MultiLocationBatch struct {
	Count   int                         `json:"count"`
	Signals []fraud.MultiLocationSignal `json:"signals"`
}

// FailedClusterBatch is the payload published for the failed-cluster detector.
type FailedClusterBatch struct {
	Count   int                         `json:"count"`
	Signals []fraud.FailedClusterSignal `json:"signals"`
}

// TopAgentBatch is the payload published for the agent ranking.
type TopAgentBatch struct {
	Count   int                    `json:"count"`
	Signals []fraud.TopAgentSignal `json:"signals"`
}

// Publisher pushes detector findings onto the event bus. Empty batches are
// skipped so quiet runs produce no traffic.
type Publisher struct {
	bus EventPublisher
	log *zap.Logger

	subjectMultiLocation  string
	subjectFailedClusters string
	subjectTopAgents      string
}

// NewPublisher creates a new alert publisher.
func NewPublisher(bus EventPublisher, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		bus: bus,
		log: log,

		subjectMultiLocation:  SubjectMultiLocation,
		subjectFailedClusters: SubjectFailedClusters,
		subjectTopAgents:      SubjectTopAgents,
	}
}

// WithSubjectPrefix rebases the detector subjects onto prefix, so a prefix of
// "staging.fraud" publishes to staging.fraud.multi_location and so on. An
// empty prefix keeps the defaults.
func (p *Publisher) WithSubjectPrefix(prefix string) *Publisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return p
	}
	p.subjectMultiLocation = prefix + ".multi_location"
	p.subjectFailedClusters = prefix + ".failed_clusters"
	p.subjectTopAgents = prefix + ".top_agents"
	return p
}

// PublishMultiLocationSignals publishes one batch of multi-location findings.
func (p *Publisher) PublishMultiLocationSignals(ctx context.Context, signals []fraud.MultiLocationSignal) error {
	if len(signals) == 0 {
		p.log.Debug("no multi-location signals to publish")
		return nil
	}

	batch := MultiLocationBatch{Count: len(signals), Signals: signals}
	if err := p.bus.Publish(ctx, p.subjectMultiLocation, TypeMultiLocationDetected, batch); err != nil {
		return err
	}

	p.log.Info("published multi-location signals", zap.Int("count", batch.Count))
	return nil
}

// PublishFailedClusterSignals publishes one batch of failed-cluster findings.
func (p *Publisher) PublishFailedClusterSignals(ctx context.Context, signals []fraud.FailedClusterSignal) error {
	if len(signals) == 0 {
		p.log.Debug("no failed-cluster signals to publish")
		return nil
	}

	batch := FailedClusterBatch{Count: len(signals), Signals: signals}
	if err := p.bus.Publish(ctx, p.subjectFailedClusters, TypeFailedClustersDetected, batch); err != nil {
		return err
	}

	p.log.Info("published failed-cluster signals", zap.Int("count", batch.Count))
	return nil
}

// PublishTopAgentSignals publishes the current agent ranking.
func (p *Publisher) PublishTopAgentSignals(ctx context.Context, signals []fraud.TopAgentSignal) error {
	if len(signals) == 0 {
		p.log.Debug("no top-agent signals to publish")
		return nil
	}

	batch := TopAgentBatch{Count: len(signals), Signals: signals}
	if err := p.bus.Publish(ctx, p.subjectTopAgents, TypeTopAgentsRanked, batch); err != nil {
		return err
	}

	p.log.Info("published top-agent ranking", zap.Int("count", batch.Count))
	return nil
}
