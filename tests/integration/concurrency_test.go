package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentEmissions fires many signed emissions at once against a
// single subscription and verifies that every event is delivered exactly
// once at the first attempt and that history bookkeeping stays consistent
// under contention.
func TestConcurrentEmissions(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	var hits atomic.Int64
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer subscriber.Close()

	token := getToken(t, app)
	createWebhook(t, app, token, map[string]interface{}{
		"id":          "wh_load",
		"url":         subscriber.URL,
		"secret":      "subscriber-shared-secret",
		"max_retries": 0,
	})

	concurrency := 50

	var wg sync.WaitGroup
	var accepted atomic.Int64
	var failed atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"transaction_id":"txn_load_%d","amount":1000,"currency":"USD","status":"SETTLED"}`, idx)
			nonce := fmt.Sprintf("nonce-load-%d-%d", idx, time.Now().UnixNano())

			r, err := http.DefaultClient.Do(signedEmit(t, app, "/api/v1/events/settlement", body, nonce))
			if err != nil {
				failed.Add(1)
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)

			if r.StatusCode == http.StatusAccepted {
				accepted.Add(1)
			} else {
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Concurrent emissions: %d accepted, %d failed (out of %d)", accepted.Load(), failed.Load(), concurrency)
	require.Equal(t, int64(concurrency), accepted.Load(), "every emission should be accepted")
	assert.Equal(t, int64(concurrency), hits.Load(), "every event should reach the subscriber exactly once")

	// Stats agree with the subscriber's count
	statsReq, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/webhooks/wh_load/stats", nil)
	statsReq.Header.Set("Authorization", "Bearer "+token)
	statsResp, err := http.DefaultClient.Do(statsReq)
	require.NoError(t, err)
	defer statsResp.Body.Close()

	var statsOut struct {
		Data struct {
			Total int `json:"total"`
			Sent  int `json:"sent"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&statsOut))
	assert.Equal(t, concurrency, statsOut.Data.Total)
	assert.Equal(t, concurrency, statsOut.Data.Sent)
}

// TestConcurrentFanout verifies one emission reaches every matching
// subscription when many are registered, and that the response carries one
// first-attempt record per subscription.
func TestConcurrentFanout(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	var hits atomic.Int64
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer subscriber.Close()

	token := getToken(t, app)
	fanout := 20
	for i := 0; i < fanout; i++ {
		createWebhook(t, app, token, map[string]interface{}{
			"id":     fmt.Sprintf("wh_fan_%d", i),
			"url":    subscriber.URL,
			"secret": "subscriber-shared-secret",
		})
	}

	body := `{"transaction_id":"txn_fanout","amount":1000,"currency":"USD","status":"SETTLED"}`
	resp, err := http.DefaultClient.Do(signedEmit(t, app, "/api/v1/events/settlement", body, "nonce-fanout-1"))
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var emitResp struct {
		Data struct {
			Records []struct {
				SubscriptionID string `json:"subscription_id"`
				EventID        string `json:"event_id"`
				Status         string `json:"status"`
			} `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(respBody, &emitResp))
	require.Len(t, emitResp.Data.Records, fanout)

	// One record per subscription, all sharing the same event id
	seen := make(map[string]struct{})
	eventID := emitResp.Data.Records[0].EventID
	for _, rec := range emitResp.Data.Records {
		assert.Equal(t, "SENT", rec.Status)
		assert.Equal(t, eventID, rec.EventID)
		seen[rec.SubscriptionID] = struct{}{}
	}
	assert.Len(t, seen, fanout)
	assert.Equal(t, int64(fanout), hits.Load())
}

// TestConcurrentRegistryWrites hammers the same subscription id with
// concurrent replacements while listing in parallel. The registry must
// neither lose the subscription nor hand out torn state.
func TestConcurrentRegistryWrites(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := getToken(t, app)
	createWebhook(t, app, token, map[string]interface{}{
		"id":     "wh_shared",
		"url":    "https://hooks.example.com/v0",
		"secret": "subscriber-shared-secret",
	})

	concurrency := 20

	var wg sync.WaitGroup
	var updates atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]interface{}{
				"url":    fmt.Sprintf("https://hooks.example.com/v%d", idx),
				"secret": "subscriber-shared-secret",
			})
			req, _ := http.NewRequest(http.MethodPut, app.server.URL+"/api/v1/webhooks/wh_shared", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)

			if r.StatusCode == http.StatusOK || r.StatusCode == http.StatusCreated {
				updates.Add(1)
			}
		}(i)

		wg.Add(1)
		go func() {
			defer wg.Done()

			req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/webhooks", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)
		}()
	}

	wg.Wait()

	require.Equal(t, int64(concurrency), updates.Load(), "every replacement should succeed")

	// Exactly one subscription remains, holding one of the written URLs
	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/webhooks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var listOut struct {
		Data struct {
			Count    int `json:"count"`
			Webhooks []struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"webhooks"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listOut))
	require.Equal(t, 1, listOut.Data.Count)
	assert.Equal(t, "wh_shared", listOut.Data.Webhooks[0].ID)
	assert.Contains(t, listOut.Data.Webhooks[0].URL, "https://hooks.example.com/v")
}

// TestConcurrentRetries drives several failing deliveries at once and
// verifies the scheduler executes every planned retry without losing or
// duplicating attempts.
func TestConcurrentRetries(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	// Always fail so each event exhausts its retry budget
	var calls atomic.Int64
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer subscriber.Close()

	token := getToken(t, app)
	createWebhook(t, app, token, map[string]interface{}{
		"id":                  "wh_flaky",
		"url":                 subscriber.URL,
		"secret":              "subscriber-shared-secret",
		"max_retries":         2,
		"retry_delay_base_ms": 25,
		"retry_delay_max_ms":  100,
	})

	events := 10
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"transaction_id":"txn_flaky_%d","amount":100,"currency":"USD","status":"SETTLED"}`, idx)
			nonce := fmt.Sprintf("nonce-flaky-%d-%d", idx, time.Now().UnixNano())

			r, err := http.DefaultClient.Do(signedEmit(t, app, "/api/v1/events/settlement", body, nonce))
			if err != nil {
				return
			}
			r.Body.Close()
		}(i)
	}
	wg.Wait()

	// max_retries=2 means attempts 1 and 2 per event: 2 network calls each.
	expectedCalls := int64(events * 2)
	require.Eventually(t, func() bool {
		return calls.Load() >= expectedCalls
	}, 10*time.Second, 50*time.Millisecond, "retries did not complete, got %d calls", calls.Load())

	// No extra attempts beyond the budget
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, expectedCalls, calls.Load())

	// Every attempt failed; stats count both tries per event plus the
	// retry markers recorded when each retry was scheduled.
	statsReq, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/webhooks/wh_flaky/stats", nil)
	statsReq.Header.Set("Authorization", "Bearer "+token)
	statsResp, err := http.DefaultClient.Do(statsReq)
	require.NoError(t, err)
	defer statsResp.Body.Close()

	var statsOut struct {
		Data struct {
			Sent int `json:"sent"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&statsOut))
	assert.Equal(t, 0, statsOut.Data.Sent)
}
