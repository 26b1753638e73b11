package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/backend/internal/complaint"
	"trustline/backend/internal/config"
	"trustline/backend/internal/models"
)

func newTestApp(t *testing.T, opts ...Option) *Application {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	t.Chdir(dir)
	mr := miniredis.RunT(t)

	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", filepath.Join(dir, "app.db"))
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("UPLOADS_DIR", filepath.Join(dir, "uploads"))

	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := Bootstrap(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func fileComplaint(t *testing.T, a *Application) *models.Complaint {
	t.Helper()
	lat, lng := 12.97, 77.59
	res, err := a.Complaints.File(context.Background(), complaint.FileRequest{
		Title:       "Streetlight out",
		Description: "Dark for a week",
		FiledBy:     "citizen@example.com",
		Latitude:    &lat,
		Longitude:   &lng,
	})
	require.NoError(t, err)
	return res.Complaint
}

func TestBootstrap_InlineFanoutReachesQueue(t *testing.T) {
	a := newTestApp(t, WithInlineFanout())
	ctx := context.Background()

	c := fileComplaint(t, a)
	n, err := a.Redis.XLen(ctx, a.Store.StreamKey("complaint")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = a.Complaints.Transition(ctx, c.ID, models.StatusResolved, "", complaint.System)
	require.NoError(t, err)
	n, err = a.Redis.XLen(ctx, a.Store.StreamKey("ComplaintService")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	snap := a.Stats.Snapshot(ctx)
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Resolved)
}

func TestBootstrap_EscalatorWired(t *testing.T) {
	a := newTestApp(t, WithInlineFanout())
	fileComplaint(t, a)

	res, err := a.Escalator.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 0, res.Promoted)
}

func TestRouter_HealthRequestIDAndCORS(t *testing.T) {
	a := newTestApp(t)
	r := a.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	a := newTestApp(t)
	r := a.Router()

	for _, path := range []string{"/api/complaints/mine", "/api/admin/stats"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}
