package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/google/generative-ai-go/genai"

	"gemini-chat-backend/internal/metrics"
	"gemini-chat-backend/internal/models"
)

// ContentGenerator is one upstream completion API.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)
	Close() error
}

type RelayService struct {
	generator ContentGenerator
	rateChan  chan struct{} // Token bucket, nil when unbounded
}

// NewRelayService wraps a generator. concurrentReqs > 0 caps the number of
// simultaneous upstream calls; zero or less leaves them unbounded.
func NewRelayService(generator ContentGenerator, concurrentReqs int) *RelayService {
	s := &RelayService{generator: generator}

	if concurrentReqs > 0 {
		s.rateChan = make(chan struct{}, concurrentReqs)
		for i := 0; i < concurrentReqs; i++ {
			s.rateChan <- struct{}{}
		}
	}
	return s
}

func (s *RelayService) Close() {
	if err := s.generator.Close(); err != nil {
		log.WithError(err).Warn("closing completion client")
	}
}

// acquireRate blocks until a rate slot is available
func (s *RelayService) acquireRate(ctx context.Context) error {
	if s.rateChan == nil {
		return nil
	}
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RelayService) releaseRate() {
	if s.rateChan != nil {
		s.rateChan <- struct{}{}
	}
}

// Relay validates a raw conversation value and submits it. It is the single
// entry point shared by the HTTP and WebSocket transports.
func (s *RelayService) Relay(ctx context.Context, raw json.RawMessage) (string, error) {
	turns, err := DecodeConversation(raw)
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues(metrics.ResultInvalidInput).Inc()
		return "", err
	}

	text, err := s.SubmitConversation(ctx, turns)
	if err != nil {
		var invalid *InvalidInputError
		if errors.As(err, &invalid) {
			metrics.RelayRequestsTotal.WithLabelValues(metrics.ResultInvalidInput).Inc()
		} else {
			metrics.RelayRequestsTotal.WithLabelValues(metrics.ResultUpstreamError).Inc()
		}
		return "", err
	}

	metrics.RelayRequestsTotal.WithLabelValues(metrics.ResultOK).Inc()
	return text, nil
}

// SubmitConversation prepends the persona turn, makes exactly one upstream
// call and returns the first candidate's first text part.
func (s *RelayService) SubmitConversation(ctx context.Context, turns []models.ConversationTurn) (string, error) {
	if turns == nil {
		return "", &InvalidInputError{Message: ErrMsgConversationNotArray}
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer s.releaseRate()

	contents := BuildContents(turns)

	metrics.UpstreamInFlight.Inc()
	start := time.Now()
	resp, err := s.generator.GenerateContent(ctx, contents)
	metrics.UpstreamInFlight.Dec()

	if err != nil {
		metrics.UpstreamDurationSeconds.WithLabelValues(metrics.ResultUpstreamError).Observe(time.Since(start).Seconds())
		return "", &UpstreamError{Err: err}
	}

	text, err := firstCandidateText(resp)
	if err != nil {
		metrics.UpstreamDurationSeconds.WithLabelValues(metrics.ResultUpstreamError).Observe(time.Since(start).Seconds())
		return "", &UpstreamError{Err: err}
	}

	metrics.UpstreamDurationSeconds.WithLabelValues(metrics.ResultOK).Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"turns":       len(contents),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("completion received")

	return text, nil
}
