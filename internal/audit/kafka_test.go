package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"orion-sentinel/internal/playbook"
)

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestKafkaSink_Record(t *testing.T) {
	writer := &fakeKafkaWriter{}
	sink := &KafkaSink{writer: writer}

	ta := sampleAction()
	if err := sink.Record(context.Background(), ta); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(writer.messages))
	}

	msg := writer.messages[0]
	if string(msg.Key) != "block-high-confidence" {
		t.Errorf("key = %q, want playbook id", msg.Key)
	}

	var decoded playbook.TriggeredAction
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("message value is not a triggered action: %v", err)
	}
	if decoded.PlaybookID != ta.PlaybookID || decoded.Event.ID != "evt-1" {
		t.Errorf("decoded record = %+v", decoded)
	}
}

func TestKafkaSink_WriteFailure(t *testing.T) {
	sink := &KafkaSink{writer: &fakeKafkaWriter{err: errors.New("broker down")}}

	if err := sink.Record(context.Background(), sampleAction()); err == nil {
		t.Error("Record() should fail when the writer fails")
	}
}
