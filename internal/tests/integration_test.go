//go:build integration

package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"devicehub-api/internal"
	"devicehub-api/internal/apperr"
	"devicehub-api/internal/catalog"
	"devicehub-api/internal/config"
	"devicehub-api/internal/devices"
	"devicehub-api/internal/logging"
	"devicehub-api/internal/models"
	"devicehub-api/internal/store"
	"devicehub-api/internal/testutil"
)

const (
	adminEmail = "admin@devicehub.local"
	staffID    = int64(2)
	password   = "integration-password"
)

type env struct {
	db    *sql.DB
	store *store.Store
	svc   *devices.Service
	srv   *internal.Server
}

func setup(t *testing.T) *env {
	t.Helper()
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	testutil.ResetSchema(t, db)

	st := store.New(db)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.SetPassword(context.Background(), adminEmail, string(hash)))

	log := logging.Discard()
	svc := devices.NewService(st, devices.WithLogger(log))
	srv, err := internal.NewServer(internal.Deps{
		Config: &config.Config{
			JWTSecret:   "supersecretkeyforintegrationtestingonly",
			JWTIssuer:   "devicehub-api",
			JWTAudience: "devicehub-api",
			JWTExpiry:   time.Hour,
		},
		Devices:  svc,
		Catalog:  catalog.NewService(st, st, log),
		Accounts: st,
		DB:       db,
		Logger:   log,
	})
	require.NoError(t, err)
	return &env{db: db, store: st, svc: svc, srv: srv}
}

func (e *env) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(w, req)
	return w
}

func laptop(code string, userID *int64) models.DeviceInput {
	in := models.DeviceInput{
		ModelID:      1,
		TypeID:       1,
		SerialNumber: "SN-" + code,
		Detail:       "MacBook Pro 14",
		PurchasedAt:  models.NewDate(2024, 1, 15),
		Status:       models.StatusHealthy,
		UserID:       userID,
	}
	if code != "" {
		in.Code = &code
	}
	return in
}

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION") != "1" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestHTTPAgainstPostgres(t *testing.T) {
	e := setup(t)

	w := e.request(t, http.MethodGet, "/dbping", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "db: ok", w.Body.String())

	w = e.request(t, http.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	uid := staffID
	w = e.request(t, http.MethodPost, "/devices", login.Token, laptop("LT-100", &uid))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view models.DeviceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Laptop", view.TypeName)
	require.NotNil(t, view.UserName)

	w = e.request(t, http.MethodGet, fmt.Sprintf("/devices/%d/assignments", view.ID), login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history models.Page[models.DeviceAssignmentView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, staffID, history.Data[0].UserID)

	w = e.request(t, http.MethodDelete, fmt.Sprintf("/devices/%d", view.ID), login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.request(t, http.MethodDelete, "/device-models/1", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedgerAgainstPostgres(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	admin := int64(1)
	staff := staffID
	d, err := e.svc.CreateDevice(ctx, laptop("LT-200", &staff))
	require.NoError(t, err)

	_, err = e.svc.UpdateDevice(ctx, d.ID, laptop("LT-200", &admin))
	require.NoError(t, err)
	_, err = e.svc.UpdateDevice(ctx, d.ID, laptop("LT-200", nil))
	require.NoError(t, err)

	page, err := e.svc.ListAssignmentHistory(ctx, d.ID, models.AssignmentFilter{}, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	for _, a := range page.Data {
		assert.NotNil(t, a.ReturnedAt, "assignment %d should be closed", a.ID)
	}

	_, err = e.svc.CreateDevice(ctx, laptop("LT-200", nil))
	assert.Equal(t, "DEVICE_CODE_IS_EXISTING", apperr.CodeOf(err))

	err = e.svc.DeleteDevice(ctx, d.ID)
	assert.Equal(t, "CANNOT_DELETE_WHEN_HAVE_DEVICE_ASSIGN_HISTORY", apperr.CodeOf(err))
}

func TestConcurrentReassignKeepsOneOpenRecord(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d, err := e.svc.CreateDevice(ctx, laptop("LT-300", nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		uid := int64(1 + i%2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.svc.UpdateDevice(ctx, d.ID, laptop("LT-300", &uid))
		}()
	}
	wg.Wait()

	var open int
	require.NoError(t, e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM device_assignment_history WHERE device_id = $1 AND returned_at IS NULL`, d.ID).Scan(&open))
	assert.Equal(t, 1, open)

	var holder int64
	require.NoError(t, e.db.QueryRowContext(ctx,
		`SELECT h.user_id FROM device_assignment_history h JOIN devices d ON d.id = h.device_id
		 WHERE h.device_id = $1 AND h.returned_at IS NULL AND h.user_id = d.user_id`, d.ID).Scan(&holder))
	assert.Contains(t, []int64{1, 2}, holder)
}
