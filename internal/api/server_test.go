package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-feed/internal/broadcast"
	"signal-feed/internal/cache"
	"signal-feed/internal/config"
	"signal-feed/internal/fetcher"
	"signal-feed/internal/instrument"
	"signal-feed/internal/metrics"
	"signal-feed/internal/poller"
	"signal-feed/internal/service"
)

type stubResolver struct{}

func (stubResolver) GetQuote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	return fetcher.Quote{Price: inst.ReferencePrice, Source: fetcher.SourceMock, ObservedAt: time.Now()}
}

type stubPoller struct{}

func (stubPoller) State() poller.State { return poller.StateIdle }

func (stubPoller) LastCycle() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

type failingService struct{}

func (failingService) Analyze(ctx context.Context, asset string) (service.Analysis, error) {
	return service.Analysis{}, errors.New("boom")
}

func (failingService) Status() service.Status { return service.Status{} }

type fixture struct {
	srv   *httptest.Server
	hub   *broadcast.Hub
	cache *cache.PriceCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pc := cache.New()
	pc.Update("BTCUSDT", fetcher.Quote{
		Price:      decimal.NewFromInt(50000),
		Change24h:  decimal.RequireFromString("3.0"),
		ObservedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Source:     fetcher.SourceBybitSpot,
	})
	hub := broadcast.NewHub(nil, zerolog.Nop())
	svc := service.New("signalfeed", instrument.DefaultRegistry(), pc, stubResolver{}, stubPoller{}, hub, zerolog.Nop())

	s := NewServer(Deps{
		Service:     svc,
		Subscribers: hub,
		Snapshots:   pc,
		Poller:      stubPoller{},
		Metrics:     metrics.New(),
	}, config.ServerConfig{CORSOrigins: []string{"*"}}, config.WebSocketConfig{
		WriteTimeout: time.Second,
		PingInterval: time.Second,
		ReadLimit:    1024,
	}, zerolog.Nop())

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, hub: hub, cache: pc}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestIndexListsInstruments(t *testing.T) {
	f := newFixture(t)

	var body statusResponse
	resp := getJSON(t, f.srv.URL+"/", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "online", body.Status)
	assert.Equal(t, "signalfeed", body.Service)
	assert.Contains(t, body.Instruments, "BTC/USDT")
	assert.Contains(t, body.Instruments, "EUR/USD")
	assert.Equal(t, 1, body.Cached)
}

func TestAnalyzeKnownAsset(t *testing.T) {
	f := newFixture(t)

	var body map[string]any
	resp := getJSON(t, f.srv.URL+"/analyze/BTC%2FUSDT", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "BTC/USDT", body["asset"])
	assert.Equal(t, "MODERADO", body["tier"])
	assert.Equal(t, "CALL", body["signal"])
	assert.Equal(t, 44.0, body["rsi"])
	assert.Equal(t, 50000.0, body["entry"])
	assert.Equal(t, 5.0, body["expiration"])
	assert.Equal(t, "bybit-spot", body["source"])
	assert.Equal(t, true, body["cached"])
}

func TestAnalyzePlainSlashPath(t *testing.T) {
	f := newFixture(t)

	var body map[string]any
	getJSON(t, f.srv.URL+"/analyze/BTC/USDT", &body)
	assert.Equal(t, "BTC/USDT", body["asset"])
}

func TestAnalyzeWeakSignalHasNullDirection(t *testing.T) {
	f := newFixture(t)

	var body map[string]any
	getJSON(t, f.srv.URL+"/analyze/EURUSD", &body)

	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "FRACO", body["tier"])
	assert.Nil(t, body["signal"])
	assert.Nil(t, body["expiration"])
	assert.Equal(t, "mock", body["source"])
	assert.Equal(t, []any{}, body["reasons"])
}

func TestAnalyzeUnknownAsset(t *testing.T) {
	f := newFixture(t)

	var body errorResponse
	resp := getJSON(t, f.srv.URL+"/analyze/XYZ%2FABC", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "XYZ/ABC", body.Asset)
	assert.Contains(t, body.Message, "XYZ/ABC")
	assert.Contains(t, body.Available, "BTC/USDT")
}

func TestAnalyzeInternalFailure(t *testing.T) {
	s := NewServer(Deps{Service: failingService{}, Subscribers: broadcast.NewHub(nil, zerolog.Nop())},
		config.ServerConfig{}, config.WebSocketConfig{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze/BTCUSDT", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	var body healthResponse
	getJSON(t, f.srv.URL+"/healthz", &body)

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "IDLE", body.Poller)
	assert.Equal(t, "2026-10-19T12:00:00Z", body.LastCycle)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/analyze/BTCUSDT", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(out))
}

func TestWebSocketReceivesSnapshotAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	var initial broadcast.PricesMessage
	readJSON(t, conn, &initial)
	assert.Equal(t, "prices", initial.Type)
	require.Contains(t, initial.Data, "BTCUSDT")
	assert.Equal(t, 50000.0, initial.Data["BTCUSDT"].Price)

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	f.cache.Update("ETHUSDT", fetcher.Quote{Price: decimal.NewFromInt(3000), Source: fetcher.SourceBybitLinear})
	res := f.hub.Push(f.cache.Snapshot())
	assert.Equal(t, 1, res.Delivered)

	var pushed broadcast.PricesMessage
	readJSON(t, conn, &pushed)
	assert.Len(t, pushed.Data, 2)
	assert.Equal(t, "bybit-linear", pushed.Data["ETHUSDT"].Source)
}

func TestWebSocketSubscribeAck(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	var initial broadcast.PricesMessage
	readJSON(t, conn, &initial)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "assets": []string{"BTC/USDT", "EUR/USD"}}))
	var ack ackMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{"BTC/USDT", "EUR/USD"}, ack.Assets)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "asset": "XAU/USD"}))
	readJSON(t, conn, &ack)
	assert.Equal(t, []string{"XAU/USD"}, ack.Assets)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe"}))
	readJSON(t, conn, &ack)
	assert.Equal(t, "unsubscribed", ack.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var errMsg errorMessage
	readJSON(t, conn, &errMsg)
	assert.Equal(t, "error", errMsg.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	readJSON(t, conn, &errMsg)
	assert.Contains(t, errMsg.Message, "dance")
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	var initial broadcast.PricesMessage
	readJSON(t, conn, &initial)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseSendsCloseFrame(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	var initial broadcast.PricesMessage
	readJSON(t, conn, &initial)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	f.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestReplyShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"subscribe single", `{"action":"subscribe","asset":"BTC/USDT"}`, ackMessage{Type: "subscribed", Assets: []string{"BTC/USDT"}}},
		{"subscribe empty", `{"action":"subscribe"}`, errorMessage{Type: "error", Message: "subscribe requires asset or assets"}},
		{"unsubscribe", `{"action":"unsubscribe","assets":["ETH/USDT"]}`, ackMessage{Type: "unsubscribed", Assets: []string{"ETH/USDT"}}},
		{"malformed", `{`, errorMessage{Type: "error", Message: "invalid message"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reply([]byte(tt.in)))
		})
	}
}
