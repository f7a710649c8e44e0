package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// recordingServer は受信したリクエストを記録するテストサーバー。
type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(attempt int, w http.ResponseWriter)
}

type recordedRequest struct {
	contentType    string
	apiKey         string
	authorization  string
	idempotencyKey string
	body           map[string]any
}

func newRecordingServer(handler func(attempt int, w http.ResponseWriter)) (*recordingServer, *httptest.Server) {
	rs := &recordingServer{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var parsed map[string]any
		_ = json.Unmarshal(body, &parsed)

		rs.mu.Lock()
		attempt := len(rs.requests)
		rs.requests = append(rs.requests, recordedRequest{
			contentType:    r.Header.Get("Content-Type"),
			apiKey:         r.Header.Get("X-API-Key"),
			authorization:  r.Header.Get("Authorization"),
			idempotencyKey: r.Header.Get("X-Idempotency-Key"),
			body:           parsed,
		})
		rs.mu.Unlock()

		rs.handler(attempt, w)
	}))
	return rs, srv
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

func (rs *recordingServer) request(i int) recordedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.requests[i]
}

func newTestClient(endpoint string) *Client {
	return NewClient(&http.Client{Timeout: 2 * time.Second}, testLogger(), ClientConfig{
		Endpoint:   endpoint,
		APIKey:     "test-api-key",
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})
}

func TestDispatch_Success_SendsEnvelopeAndHeaders(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"token": "t"}}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Dispatch(context.Background(), "bearer-abc", GetProductsAction{})
	if err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}
	if string(resp.Data) != `{"token": "t"}` {
		t.Errorf("Data = %s, want dataフィールドの中身", resp.Data)
	}

	req := rs.request(0)
	if req.contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", req.contentType)
	}
	if req.apiKey != "test-api-key" {
		t.Errorf("X-API-Key = %q, want test-api-key", req.apiKey)
	}
	if req.authorization != "Bearer bearer-abc" {
		t.Errorf("Authorization = %q, want Bearer bearer-abc", req.authorization)
	}
	if req.body["action"] != "getProducts" {
		t.Errorf("action = %v, want getProducts", req.body["action"])
	}
}

func TestDispatch_WithoutToken_NoAuthorizationHeader(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Dispatch(context.Background(), "", LoginAction{Username: "u", Password: "p"}); err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}

	if auth := rs.request(0).authorization; auth != "" {
		t.Errorf("Authorization = %q, want 未設定", auth)
	}
}

func TestDispatch_RetriesOn5xx_ThenSucceeds(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		if attempt < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message": "temporary"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": []}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Dispatch(context.Background(), "tok", GetProductsAction{})
	if err != nil {
		t.Fatalf("リトライ後の成功がエラーになった: %v", err)
	}
	if string(resp.Data) != `[]` {
		t.Errorf("Data = %s, want []", resp.Data)
	}
	if rs.count() != 3 {
		t.Errorf("試行回数 = %d, want 3", rs.count())
	}
}

func TestDispatch_RetryLimitReached_ReturnsServerError(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message": "down for maintenance"}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Dispatch(context.Background(), "tok", GetProductsAction{})
	if err == nil {
		t.Fatal("リトライ上限到達後はエラーを返すべき")
	}

	// 初回 + 追加リトライ3回 = 最大4試行
	if rs.count() != 4 {
		t.Errorf("試行回数 = %d, want 4", rs.count())
	}
	if !IsServerError(err) {
		t.Errorf("IsServerError(err) = false, want true: %v", err)
	}
	if UpstreamMessage(err) != "down for maintenance" {
		t.Errorf("message = %q, want 外部サービスのメッセージ", UpstreamMessage(err))
	}
}

func TestDispatch_NoRetryOn4xx(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "invalid payload"}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Dispatch(context.Background(), "tok", GetProductsAction{})
	if err == nil {
		t.Fatal("4xxはエラーを返すべき")
	}

	if rs.count() != 1 {
		t.Errorf("試行回数 = %d, want 1（4xxはリトライしない）", rs.count())
	}
	if !IsClientError(err) {
		t.Errorf("IsClientError(err) = false, want true: %v", err)
	}
}

func TestDispatch_401_ReturnsErrAuthExpired(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "token expired"}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Dispatch(context.Background(), "stale-token", GetProductsAction{})
	if err == nil {
		t.Fatal("401はエラーを返すべき")
	}

	// errors.Isで集中判定できること
	if !errors.Is(err, ErrAuthExpired) {
		t.Errorf("errors.Is(err, ErrAuthExpired) = false, want true: %v", err)
	}
	if rs.count() != 1 {
		t.Errorf("試行回数 = %d, want 1（401はリトライしない）", rs.count())
	}
}

func TestDispatch_IdempotencyKey_NonIdempotentAction(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		if attempt < 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Dispatch(context.Background(), "tok", ApproveCommentAction{ID: "c-1"}); err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}

	first := rs.request(0).idempotencyKey
	second := rs.request(1).idempotencyKey
	if first == "" {
		t.Fatal("非冪等アクションにはX-Idempotency-Keyが付与されるべき")
	}
	// 同一ディスパッチのリトライでは同じキーを再利用すること
	if first != second {
		t.Errorf("リトライ間でキーが変わった: %q != %q", first, second)
	}
}

func TestDispatch_IdempotencyKey_NewKeyPerDispatch(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	action := RejectCommentAction{ID: "c-1", Reason: "spam"}
	if _, err := client.Dispatch(context.Background(), "tok", action); err != nil {
		t.Fatalf("1回目の Dispatch がエラーを返した: %v", err)
	}
	if _, err := client.Dispatch(context.Background(), "tok", action); err != nil {
		t.Fatalf("2回目の Dispatch がエラーを返した: %v", err)
	}

	if rs.request(0).idempotencyKey == rs.request(1).idempotencyKey {
		t.Error("別ディスパッチでは新しい冪等性キーが生成されるべき")
	}
}

func TestDispatch_IdempotentAction_NoIdempotencyKey(t *testing.T) {
	rs, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Dispatch(context.Background(), "tok", GetSettingsAction{}); err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}

	if key := rs.request(0).idempotencyKey; key != "" {
		t.Errorf("冪等アクションにX-Idempotency-Keyが付与された: %q", key)
	}
}

func TestDispatch_Timeout_ClassifiedAsErrTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(&http.Client{Timeout: 20 * time.Millisecond}, testLogger(), ClientConfig{
		Endpoint:   srv.URL,
		APIKey:     "k",
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})

	_, err := client.Dispatch(context.Background(), "tok", GetProductsAction{})
	if err == nil {
		t.Fatal("タイムアウトはエラーを返すべき")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("errors.Is(err, ErrTimeout) = false, want true: %v", err)
	}
}

func TestDispatch_NetworkFailure_ClassifiedAsErrNetwork_NoRetry(t *testing.T) {
	// 閉じたサーバーへの接続は即座に失敗する
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(url)
	_, err := client.Dispatch(context.Background(), "tok", GetProductsAction{})
	if err == nil {
		t.Fatal("接続失敗はエラーを返すべき")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("errors.Is(err, ErrNetwork) = false, want true: %v", err)
	}
}

func TestDispatch_ContextCancelledDuringRetryWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(&http.Client{Timeout: 2 * time.Second}, testLogger(), ClientConfig{
		Endpoint:   srv.URL,
		APIKey:     "k",
		MaxRetries: 3,
		RetryDelay: 10 * time.Second, // 待機中にキャンセルさせる
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Dispatch(ctx, "tok", GetProductsAction{})
	if err == nil {
		t.Fatal("キャンセル時はエラーを返すべき")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("キャンセル後も待機し続けた: %v", elapsed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false, want true: %v", err)
	}
}

func TestDispatch_ResponseWithoutDataField_ReturnsWholeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Dispatch(context.Background(), "tok", GetSettingsAction{})
	if err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}
	if string(resp.Data) != `{"ok": true}` {
		t.Errorf("Data = %s, want ボディ全体", resp.Data)
	}
}

// mockCollector はMetricsCollectorのモック実装。
type mockCollector struct {
	mu         sync.Mutex
	dispatches []int
	retries    int
	transport  []string
}

func (m *mockCollector) RecordDispatch(action string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, statusCode)
}

func (m *mockCollector) RecordRetry(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *mockCollector) RecordDispatchLatency(action string, d time.Duration) {}

func (m *mockCollector) RecordTransportFailure(action string, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = append(m.transport, kind)
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	_, srv := newRecordingServer(func(attempt int, w http.ResponseWriter) {
		if attempt < 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	collector := &mockCollector{}
	client.SetMetrics(collector)

	if _, err := client.Dispatch(context.Background(), "tok", GetProductsAction{}); err != nil {
		t.Fatalf("Dispatch がエラーを返した: %v", err)
	}

	if len(collector.dispatches) != 2 {
		t.Errorf("dispatch記録数 = %d, want 2", len(collector.dispatches))
	}
	if collector.retries != 1 {
		t.Errorf("retry記録数 = %d, want 1", collector.retries)
	}
}
