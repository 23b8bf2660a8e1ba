// Package queue publishes round lifecycle events onto a Redis stream so
// downstream consumers (notifications, analytics) can react without polling
// the database.
package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

// DefaultStream is the stream round events are published to.
const DefaultStream = "mixtape:round-events"

// Capped so an idle consumer cannot grow the stream unbounded.
const defaultMaxLen = 10000

// RoundEvent describes one processed daily round.
type RoundEvent struct {
	RoundID         string
	GroupID         string
	Date            string
	Status          domain.RoundStatus
	SubmissionCount int
	MemberCount     int
}

// RoundEventPublisher writes round events to a Redis stream.
type RoundEventPublisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewRoundEventPublisher builds a publisher. An empty stream name selects
// DefaultStream.
func NewRoundEventPublisher(rdb *redis.Client, stream string) *RoundEventPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RoundEventPublisher{rdb: rdb, stream: stream, maxLen: defaultMaxLen}
}

// PublishRoundProcessed appends one event to the stream.
func (p *RoundEventPublisher) PublishRoundProcessed(ctx context.Context, ev RoundEvent) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"round_id":         ev.RoundID,
			"group_id":         ev.GroupID,
			"date":             ev.Date,
			"status":           string(ev.Status),
			"submission_count": strconv.Itoa(ev.SubmissionCount),
			"member_count":     strconv.Itoa(ev.MemberCount),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: publish round event: %w", err)
	}
	return nil
}
