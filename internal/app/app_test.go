package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-feed/internal/config"
	"signal-feed/internal/instrument"
)

func testConfig(bybitURL, yahooURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "signalfeed"},
		Providers: config.ProvidersConfig{
			Bybit: config.ProviderConfig{BaseURL: bybitURL, Timeout: time.Second},
			Yahoo: config.ProviderConfig{BaseURL: yahooURL, Timeout: time.Second},
		},
		Mock: config.MockConfig{PerturbationPct: 2, Seed: 7},
	}
}

func bybitServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol != "BTCUSDT" {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
			return
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"BTCUSDT","lastPrice":"50000","price24hPcnt":"0.03"}]}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func downServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzePrintsSignals(t *testing.T) {
	a := NewApp(testConfig(bybitServer(t).URL, downServer(t).URL), zerolog.Nop())

	var out bytes.Buffer
	err := a.Analyze(context.Background(), AnalyzeOptions{Assets: []string{"BTC/USDT", "eurusd"}}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Asset")

	btc := strings.Fields(lines[1])
	assert.Equal(t, "BTC/USDT", btc[0])
	assert.Equal(t, "50000", btc[1])
	assert.Equal(t, "3.00", btc[2])
	assert.Equal(t, "MODERADO", btc[4])
	assert.Equal(t, "CALL", btc[5])
	assert.Equal(t, "bybit-spot", btc[7])

	assert.True(t, strings.HasPrefix(lines[2], "EUR/USD"))
	assert.Contains(t, lines[2], "mock")
}

func TestAnalyzeUnknownAsset(t *testing.T) {
	a := NewApp(testConfig(downServer(t).URL, downServer(t).URL), zerolog.Nop())

	err := a.Analyze(context.Background(), AnalyzeOptions{Assets: []string{"XYZ/ABC"}}, &bytes.Buffer{})
	require.Error(t, err)

	var unknown *instrument.UnknownError
	assert.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "BTC/USDT")
}

func TestInstrumentsListing(t *testing.T) {
	a := NewApp(testConfig("", ""), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.Instruments(&out))

	text := out.String()
	assert.Contains(t, text, "bybit:BTCUSDT")
	assert.Contains(t, text, "yahoo:EURUSD=X")
	assert.Contains(t, text, "yahoo:GC=F")
	assert.Less(t, strings.Index(text, "BTC/USDT"), strings.Index(text, "EUR/USD"), "crypto is listed before forex")
}

func TestSimulateAlertSendsForteNotification(t *testing.T) {
	var got map[string]any
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer telegram.Close()

	cfg := testConfig("", "")
	cfg.Alerting = config.AlertingConfig{
		Enabled: true,
		Telegram: config.TelegramConfig{
			Enabled:  true,
			BotToken: "token",
			ChatID:   "42",
			APIBase:  telegram.URL,
			Timeout:  time.Second,
		},
	}
	a := NewApp(cfg, zerolog.Nop())

	require.NoError(t, a.SimulateAlert(context.Background(), "BTC/USDT", decimal.NewFromInt(12)))
	require.NotNil(t, got)
	text, _ := got["text"].(string)
	assert.Contains(t, text, "[SIMULATED]")
	assert.Contains(t, text, "BTC/USDT")
	assert.Contains(t, text, "CALL")
}

func TestSimulateAlertRejectsWeakSignal(t *testing.T) {
	cfg := testConfig("", "")
	cfg.Alerting = config.AlertingConfig{
		Enabled:  true,
		Telegram: config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "1"},
	}
	a := NewApp(cfg, zerolog.Nop())

	err := a.SimulateAlert(context.Background(), "BTC/USDT", decimal.NewFromInt(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODERADO")
}

func TestSimulateAlertRequiresAlerting(t *testing.T) {
	a := NewApp(testConfig("", ""), zerolog.Nop())
	assert.Error(t, a.SimulateAlert(context.Background(), "BTC/USDT", decimal.NewFromInt(12)))
}
