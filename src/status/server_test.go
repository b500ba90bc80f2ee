package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stake-plus/safetyjim/src/router"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeShard struct {
	id    int
	ready bool
	mu    sync.Mutex
	queue []router.Event
}

func (f *fakeShard) ID() int { return f.id }

func (f *fakeShard) Snapshot() router.Snapshot {
	return router.Snapshot{ShardID: f.id, Ready: f.ready, Guilds: 3}
}

func (f *fakeShard) Enqueue(_ context.Context, ev router.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, ev)
	return nil
}

type fakeSettings struct {
	settings map[string]map[string]string
	err      error
}

func (f *fakeSettings) GetGuildConfiguration(_ context.Context, guildID string) (map[string]string, error) {
	return f.settings[guildID], f.err
}

func (f *fakeSettings) UpdateConfigurationValue(_ context.Context, guildID, key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.settings[guildID][key] = value
	return nil
}

type fakeCounters map[string]int64

func (f fakeCounters) Counters(context.Context) (map[string]int64, error) { return f, nil }

type apiFixture struct {
	handler  http.Handler
	shards   []*fakeShard
	settings *fakeSettings
}

// Guild 81384788765712384 lives on shard 1 of 3; guild 175928847299117063 on shard 2.
func newAPIFixture(t *testing.T, secret string) *apiFixture {
	t.Helper()
	f := &apiFixture{
		shards: []*fakeShard{{id: 0, ready: true}, {id: 1, ready: true}},
		settings: &fakeSettings{settings: map[string]map[string]string{
			"81384788765712384": {router.KeyPrefix: "-mod"},
		}},
	}
	f.handler = New(Options{
		Shards:     []Shard{f.shards[0], f.shards[1]},
		ShardCount: 3,
		Settings:   f.settings,
		Counters:   fakeCounters{"command.count": 7},
		JWTSecret:  secret,
		Log:        zaptest.NewLogger(t),
	})
	return f
}

func token(t *testing.T, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops"}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	rec := f.do(t, http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"shards":2,"ready":2}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f.shards[1].ready = false
	rec = f.do(t, http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/shards", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/shards", "", token(t, "other")).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/shards", "", token(t, testSecret)).Code)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ops"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/shards", "", none).Code)
}

func TestNoSecretServesOnlyHealth(t *testing.T) {
	f := newAPIFixture(t, "")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/health", "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/shards", "", "anything").Code)
}

func TestShardsAndMetrics(t *testing.T) {
	f := newAPIFixture(t, testSecret)
	bearer := token(t, testSecret)

	rec := f.do(t, http.MethodGet, "/v1/shards", "", bearer)
	var snaps []router.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[1].ShardID)
	assert.Equal(t, int64(3), snaps[1].Guilds)

	rec = f.do(t, http.MethodGet, "/v1/metrics", "", bearer)
	assert.JSONEq(t, `{"command.count":7}`, rec.Body.String())
}

func TestGuildSettings(t *testing.T) {
	f := newAPIFixture(t, testSecret)
	bearer := token(t, testSecret)

	rec := f.do(t, http.MethodGet, "/v1/guilds/81384788765712384/settings", "", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prefix":"-mod"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/guilds/1/settings", "", bearer).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/guilds/abc/settings", "", bearer).Code)
}

func TestUpdatePrefixReloadsShard(t *testing.T) {
	f := newAPIFixture(t, testSecret)
	bearer := token(t, testSecret)

	rec := f.do(t, http.MethodPut, "/v1/admin/guilds/81384788765712384/settings/prefix", `{"value":"!"}`, bearer)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"reloaded":true}`, rec.Body.String())
	assert.Equal(t, "!", f.settings.settings["81384788765712384"][router.KeyPrefix])
	require.Len(t, f.shards[1].queue, 1)
	assert.Equal(t, router.EventConfigReload, f.shards[1].queue[0].Kind)
	assert.Equal(t, "81384788765712384", f.shards[1].queue[0].GuildID)
	assert.Empty(t, f.shards[0].queue)
}

func TestUpdateSettingValidation(t *testing.T) {
	f := newAPIFixture(t, testSecret)
	bearer := token(t, testSecret)
	path := "/v1/admin/guilds/81384788765712384/settings/"

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path+"nonsense", `{"value":"x"}`, bearer).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path+"prefix", `{"value":"  "}`, bearer).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, path+"prefix", `{}`, bearer).Code)

	rec := f.do(t, http.MethodPut, path+"holdingroomroleid", `{"value":""}`, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"reloaded":false}`, rec.Body.String())

	f.settings.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodPut, path+"statistics", `{"value":"true"}`, bearer).Code)
}

func TestReload(t *testing.T) {
	f := newAPIFixture(t, testSecret)
	bearer := token(t, testSecret)

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/admin/guilds/81384788765712384/reload", "", bearer).Code)
	assert.Len(t, f.shards[1].queue, 1)

	rec := f.do(t, http.MethodPost, "/v1/admin/guilds/175928847299117063/reload", "", bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code, "shard 2 runs elsewhere")
}
