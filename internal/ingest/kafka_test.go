package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/service"
)

func TestDecodeObservation(t *testing.T) {
	obs, err := DecodeObservation([]byte(`{"plate":" 51F99999 ","frame_index":40,"confidence":0.87,"source":"gate-2","observed_at":"2026-10-16T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obs.Plate != "51F99999" || obs.FrameIndex != 40 || obs.Confidence != 0.87 || obs.Source != "gate-2" {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	if obs.ObservedAt.IsZero() {
		t.Fatalf("expected observed_at to be parsed")
	}

	if _, err := DecodeObservation([]byte(`{"frame_index":1}`)); err == nil {
		t.Fatalf("expected error for missing plate")
	}
	if _, err := DecodeObservation([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed message")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeRecorder struct {
	got  []lpr.Observation
	fail func(obs lpr.Observation, attempt int) error
}

func (f *fakeRecorder) RecordObservation(ctx context.Context, obs lpr.Observation) (lpr.RecordResult, error) {
	f.got = append(f.got, obs)
	if f.fail != nil {
		if err := f.fail(obs, len(f.got)); err != nil {
			return lpr.RecordResult{}, err
		}
	}
	return lpr.RecordResult{EventID: int64(len(f.got)), Accepted: true}, nil
}

func newTestConsumer(reader MessageReader, rec ObservationRecorder) *Consumer {
	c := NewConsumer(reader, rec, "kafka", zerolog.Nop())
	c.retryBackoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond
	return c
}

func TestConsumerCommitsRecordedAndBadInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"plate":"A1","frame_index":1}`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`{"plate":"B2","frame_index":-1,"source":"cam-9"}`)},
		},
	}
	rec := &fakeRecorder{fail: func(obs lpr.Observation, _ int) error {
		if obs.FrameIndex < 0 {
			return fmt.Errorf("%w: frame_index must not be negative", service.ErrInvalidInput)
		}
		return nil
	}}

	if err := newTestConsumer(reader, rec).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.got) != 2 {
		t.Fatalf("expected 2 recorded observations, got %d", len(rec.got))
	}
	if rec.got[0].Source != "kafka" || rec.got[1].Source != "cam-9" {
		t.Fatalf("unexpected sources: %+v", rec.got)
	}
	if len(reader.committed) != 3 {
		t.Fatalf("recorded, malformed and invalid messages should all be committed, got %v", reader.committed)
	}
}

func TestConsumerRetriesStorageFailureBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs:   []kafka.Message{{Offset: 7, Value: []byte(`{"plate":"51F99999","frame_index":40}`)}},
	}
	rec := &fakeRecorder{fail: func(_ lpr.Observation, attempt int) error {
		if attempt < 3 {
			return fmt.Errorf("failed to record observation: %w: create event: database is locked", service.ErrStorage)
		}
		return nil
	}}

	if err := newTestConsumer(reader, rec).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(rec.got))
	}
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Fatalf("offset should be committed once recorded, got %v", reader.committed)
	}
}

func TestConsumerLeavesOffsetUncommittedDuringOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs:   []kafka.Message{{Offset: 7, Value: []byte(`{"plate":"51F99999","frame_index":40}`)}},
	}
	rec := &fakeRecorder{fail: func(_ lpr.Observation, attempt int) error {
		if attempt >= 4 {
			cancel()
		}
		return fmt.Errorf("failed to record observation: %w: create event: connection refused", service.ErrStorage)
	}}

	if err := newTestConsumer(reader, rec).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.got) < 4 {
		t.Fatalf("expected repeated attempts, got %d", len(rec.got))
	}
	if len(reader.committed) != 0 {
		t.Fatalf("failed message must not be committed, got %v", reader.committed)
	}
}
