package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEmbedding(t *testing.T) {
	m, _ := NewMetrics()

	m.ObserveEmbedding("text-embedding-3-small", 120*time.Millisecond, nil)
	m.ObserveEmbedding("text-embedding-3-small", 50*time.Millisecond, errors.New("timeout"))

	success := m.EmbeddingRequests.WithLabelValues("text-embedding-3-small", "success")
	if got := testutil.ToFloat64(success); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	failed := m.EmbeddingRequests.WithLabelValues("text-embedding-3-small", "error")
	if got := testutil.ToFloat64(failed); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if count := testutil.CollectAndCount(m.EmbeddingDuration); count != 1 {
		t.Errorf("duration series = %d, want 1", count)
	}
}

func TestObserveChat(t *testing.T) {
	m, _ := NewMetrics()

	m.ObserveChat("openai", "gpt-4o-mini", time.Second, nil)

	counter := m.ChatRequests.WithLabelValues("openai", "gpt-4o-mini", "success")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Errorf("chat count = %v, want 1", got)
	}
}

func TestMetricsServerServesRegistry(t *testing.T) {
	m, reg := NewMetrics()
	m.ObserveEmbedding("nomic-embed-text", 10*time.Millisecond, nil)

	srv, err := StartMetricsServer(reg, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "ragsweep_embedding_requests_total") {
		t.Error("scrape output missing embedding counter")
	}
}
