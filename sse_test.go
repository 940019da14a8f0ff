package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	s1 := b.Subscribe("export1")
	s2 := b.Subscribe("export1")
	s3 := b.Subscribe("export2")

	assert.Equal(t, 2, b.Subscribers("export1"))
	assert.Equal(t, 1, b.Subscribers("export2"))

	b.Unsubscribe(s1)
	assert.Equal(t, 1, b.Subscribers("export1"))

	b.Unsubscribe(s2)
	b.Unsubscribe(s3)
	assert.Zero(t, b.Subscribers("export1"))
	assert.Zero(t, b.Subscribers("export2"))
}

func TestBroadcasterDoubleUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("export1")
	b.Unsubscribe(s)
	assert.NotPanics(t, func() { b.Unsubscribe(s) })
}

func TestPublish(t *testing.T) {
	b := NewBroadcaster()

	s1 := b.Subscribe("export1")
	s2 := b.Subscribe("export1")
	s3 := b.Subscribe("export2")
	defer func() {
		b.Unsubscribe(s1)
		b.Unsubscribe(s2)
		b.Unsubscribe(s3)
	}()

	require.NoError(t, b.Publish("export1", ExportEvent{Type: "export_progress", Date: "240101"}))

	for _, s := range []*subscriber{s1, s2} {
		select {
		case msg := <-s.ch:
			assert.JSONEq(t, `{"type":"export_progress","date":"240101","progress":null}`, msg)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("subscriber did not receive message")
		}
	}

	select {
	case <-s3.ch:
		t.Fatal("export2 subscriber should not receive export1 events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSkipsFullChannel(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("export1")
	defer b.Unsubscribe(s)

	for range sseChannelBuffer {
		require.NoError(t, b.Publish("export1", "fill"))
	}

	done := make(chan struct{})
	go func() {
		b.Publish("export1", "overflow")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, s.ch, sseChannelBuffer)
}

func TestPublishUnmarshalable(t *testing.T) {
	assert.Error(t, NewBroadcaster().Publish("export1", make(chan int)))
}

func TestBroadcasterConcurrent(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			topic := "export1"
			if i%2 == 0 {
				topic = "export2"
			}
			s := b.Subscribe(topic)
			b.Publish(topic, "msg")
			b.Subscribers(topic)
			b.Unsubscribe(s)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, b.Subscribers("export1"))
	assert.Zero(t, b.Subscribers("export2"))
}

func TestServeSSEStopsOnConnect(t *testing.T) {
	b := NewBroadcaster()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()

	b.ServeSSE(w, req, "export1", func() (any, bool) {
		return map[string]string{"type": "export_state"}, true
	}, nil)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"type\":\"export_state\"}\n\n", w.Body.String())
	assert.Zero(t, b.Subscribers("export1"))
}

func TestServeSSEStreamsUntilDone(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ServeSSE(w, r, "export1", nil, func(msg string) bool {
			return strings.Contains(msg, "last")
		})
	}))
	defer srv.Close()

	go func() {
		assert.Eventually(t, func() bool { return b.Subscribers("export1") == 1 }, time.Second, 5*time.Millisecond)
		b.Publish("export1", "first")
		b.Publish("export1", "last")
	}()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body strings.Builder
	_, err = io.Copy(&body, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: \"first\"\n\ndata: \"last\"\n\n", body.String())
}

func TestServeSSEOutlivesWriteTimeout(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.ServeSSE(w, r, "export1", nil, func(string) bool { return true })
	}))
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	defer srv.Close()

	go func() {
		if !assert.Eventually(t, func() bool { return b.Subscribers("export1") == 1 }, time.Second, 5*time.Millisecond) {
			return
		}
		time.Sleep(500 * time.Millisecond)
		b.Publish("export1", "late")
	}()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: \"late\"\n\n", string(data))
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestServeSSEStopsOnWriteError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewBroadcaster()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := brokenWriter{httptest.NewRecorder()}

	returned := make(chan struct{})
	go func() {
		b.ServeSSE(w, req, "export1", nil, nil)
		close(returned)
	}()

	require.Eventually(t, func() bool { return b.Subscribers("export1") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Publish("export1", "lost"))

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("stream kept running after a failed write")
	}
	assert.Zero(t, b.Subscribers("export1"))
}
