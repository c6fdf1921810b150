package debugserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tickbot/pkg/logx"
)

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	svc := New(Config{}, logx.Nop(), Route{
		Pattern: "GET /status",
		Handler: JSON(func(*http.Request) (any, error) { return map[string]int{"ticks": 3}, nil }),
	}, Route{
		Pattern: "GET /broken",
		Handler: JSON(func(*http.Request) (any, error) { return nil, errors.New("store closed") }),
	})
	h := svc.Handler(Config{})

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, h, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ticks":3}`, rec.Body.String())

	rec = get(t, h, "/broken")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "store closed")

	// profiler is opt-in
	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/pprof/").Code)
	assert.Equal(t, http.StatusOK, get(t, svc.Handler(Config{Pprof: true}), "/debug/pprof/").Code)
}

func TestHandlerToken(t *testing.T) {
	h := New(Config{}, logx.Nop()).Handler(Config{Token: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz?token=nope").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz", "Authorization", "Basic s3cret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz?token=s3cret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", "Authorization", "Bearer s3cret").Code)
}

func TestCheckBind(t *testing.T) {
	cases := []struct {
		addr     string
		token    string
		insecure bool
		ok       bool
	}{
		{addr: "127.0.0.1:6060", ok: true},
		{addr: "localhost:6060", ok: true},
		{addr: "[::1]:6060", ok: true},
		{addr: "", ok: true},
		{addr: ":6060"},
		{addr: "0.0.0.0:6060"},
		{addr: "10.0.0.2:6060"},
		{addr: "10.0.0.2:6060", token: "t", ok: true},
		{addr: "0.0.0.0:6060", insecure: true, ok: true},
	}
	for _, tc := range cases {
		err := CheckBind(tc.addr, tc.token, tc.insecure)
		if tc.ok {
			assert.NoError(t, err, tc.addr)
		} else {
			assert.ErrorIs(t, err, ErrInsecureBind, tc.addr)
		}
	}
}

func TestStartServesAndStops(t *testing.T) {
	svc := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	svc.Start(context.Background())
	svc.Start(context.Background())

	require.Eventually(t, func() bool { return svc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.Empty(t, svc.Addr())
	require.NoError(t, svc.Stop(ctx))
}

func TestReconfigureTogglesServer(t *testing.T) {
	svc := New(Config{}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	svc.Start(ctx)
	assert.Empty(t, svc.Addr())

	svc.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	require.Eventually(t, func() bool { return svc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, svc.Enabled())

	svc.Reconfigure(ctx, Config{Enabled: false})
	assert.Empty(t, svc.Addr())
	assert.False(t, svc.Enabled())
}

func TestNeedsRestart(t *testing.T) {
	base := Config{Enabled: true, Addr: "127.0.0.1:6060"}
	assert.False(t, needsRestart(base, base))
	withRate := base
	withRate.BlockProfileRate = 5
	assert.False(t, needsRestart(base, withRate))
	withPprof := base
	withPprof.Pprof = true
	assert.True(t, needsRestart(base, withPprof))
	moved := base
	moved.Addr = "127.0.0.1:7070"
	assert.True(t, needsRestart(base, moved))
}
