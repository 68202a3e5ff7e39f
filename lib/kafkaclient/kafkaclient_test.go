package kafkaclient

import "testing"

// kgo.NewClient does not dial, so option validation can be checked offline.
func TestNewProducer(t *testing.T) {
	producer, err := NewProducer([]string{"localhost:9092"}, "tasks.executed")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	producer.Close()
}
