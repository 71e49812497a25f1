package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func publishFrames(t *testing.T, pub *SSEPublisher, topic string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := pub.Publish(topic, EventLayoutFrame, map[string]int{"seq": i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}
}

func TestReplayAllKeepsMostRecent(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicInteraction, TopicConfig{BufferSize: 3, ReplayAll: true})
	publishFrames(t, pub, TopicInteraction, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicInteraction)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Buffer holds versions 3, 4, 5
	for want := 3; want <= 5; want++ {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for version %d", want)
		}
	}
}

func TestDefaultTopicsReplayLatestOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	ConfigureDefaults(pub)

	publishFrames(t, pub, TopicLayout, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicLayout)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected latest frame (version 3), got %d", event.Version)
		}
		var payload map[string]int
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload["seq"] != 3 {
			t.Errorf("Unexpected payload %s (%v)", event.Data, err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for replayed frame")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnbufferedTopicOnlyDeliversLiveEvents(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	publishFrames(t, pub, "scratch", 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, "scratch")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	if err := pub.Publish("scratch", EventGraphDiff, struct{}{}); err != nil {
		t.Fatalf("Failed to publish new event: %v", err)
	}
	select {
	case event := <-sub.Events():
		if event.Version != 4 || event.Type != EventGraphDiff {
			t.Errorf("Expected diff version 4, got %s version %d", event.Type, event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestContextCancelUnsubscribes(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := pub.Subscribe(ctx, TopicGraph); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		pub.mu.RLock()
		remaining := len(pub.subscriptions[TopicGraph])
		pub.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscription was not removed after context cancel")
}

func TestClosedPublisher(t *testing.T) {
	pub := NewSSEPublisher()

	sub, err := pub.Subscribe(context.Background(), TopicPatterns)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, ok := <-sub.Events(); ok {
		t.Error("expected subscription channel to be closed")
	}
	if err := pub.Publish(TopicPatterns, EventPatterns, nil); err == nil {
		t.Error("expected publish on closed publisher to fail")
	}
	if _, err := pub.Subscribe(context.Background(), TopicPatterns); err == nil {
		t.Error("expected subscribe on closed publisher to fail")
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicGraph, Type: EventGraphFull, Data: json.RawMessage(`{"nodes":[]}`), Version: 7}
	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "id: 7\nevent: full\ndata: {") {
		t.Errorf("unexpected SSE framing: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("SSE message must end with a blank line: %q", out)
	}
}

func TestKnownTopic(t *testing.T) {
	for _, topic := range []string{TopicGraph, TopicLayout, TopicPatterns, TopicInteraction} {
		if !KnownTopic(topic) {
			t.Errorf("%s should be known", topic)
		}
	}
	if KnownTopic("workspace_status") {
		t.Error("unexpected topic reported as known")
	}
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	sub, err := pub.Subscribe(context.Background(), TopicLayout)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("expected closed subscription channel")
	}
	// Closing twice and publishing afterwards must not panic
	if err := sub.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := pub.Publish(TopicLayout, EventLayoutFrame, map[string]int{"seq": 1}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
}
