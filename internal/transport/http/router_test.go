package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regbook/internal/claim"
	claimHandler "regbook/internal/claim/handler"
	"regbook/internal/handoff"
	"regbook/internal/identity"
	"regbook/internal/registry"
	registryHandler "regbook/internal/registry/handler"
	"regbook/internal/transfer"
	transferHandler "regbook/internal/transfer/handler"
	id "regbook/pkg/domain"
)

type testEnv struct {
	router http.Handler
	jwt    *identity.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.Default()

	registrySvc := registry.New(registry.NewInMemoryStore())
	transferStore := transfer.NewInMemoryStore()
	claimStore := claim.NewInMemoryStore()
	guard := handoff.NewGuard()

	transferSvc := transfer.New(transferStore, claimStore, registrySvc, guard)
	claimSvc := claim.New(claimStore, transferStore, registrySvc, guard)

	jwtSvc := identity.NewJWTService("test-signing-key")
	router := NewRouter(Deps{
		Registry:  registryHandler.New(registrySvc, log),
		Transfers: transferHandler.New(transferSvc, log),
		Claims:    claimHandler.New(claimSvc, log),
		Validator: jwtSvc,
		Logger:    log,
	})

	return &testEnv{router: router, jwt: jwtSvc}
}

func (e *testEnv) token(t *testing.T, userID id.UserID, email string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, email, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/claims", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/claims", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestResponseBodiesCarryUUIDStrings reads raw response bodies rather than
// decoding into domain types: an ID must appear as its canonical UUID string
// so a client can lift it straight from a response into a path parameter.
func TestResponseBodiesCarryUUIDStrings(t *testing.T) {
	env := newTestEnv(t)

	owner := id.NewUserID()
	ownerToken := env.token(t, owner, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/assets", ownerToken, map[string]string{
		"registration_code": "RAW-0001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assetBody := rec.Body.String()
	var asset registry.Asset
	require.NoError(t, json.Unmarshal([]byte(assetBody), &asset))
	assert.Contains(t, assetBody, asset.ID.String())
	assert.Contains(t, assetBody, owner.String())

	rec = env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
		"asset_id":        asset.ID.String(),
		"recipient_email": "recipient@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	transferBody := rec.Body.String()
	var created transfer.Request
	require.NoError(t, json.Unmarshal([]byte(transferBody), &created))
	assert.Contains(t, transferBody, created.ID.String())
	assert.Contains(t, transferBody, asset.ID.String())

	// The string lifted from the body works as a path parameter.
	rec = env.do(t, http.MethodGet, "/transfers/"+created.ID.String(), ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransferLifecycle(t *testing.T) {
	env := newTestEnv(t)

	owner := id.NewUserID()
	ownerToken := env.token(t, owner, "owner@example.com")
	recipient := id.NewUserID()
	recipientToken := env.token(t, recipient, "recipient@example.com")

	// Register an asset under the owner.
	rec := env.do(t, http.MethodPost, "/assets", ownerToken, map[string]string{
		"registration_code": "ABC-1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	asset := decode[registry.Asset](t, rec)

	// Initiate a transfer to the recipient's email.
	rec = env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
		"asset_id":        asset.ID.String(),
		"recipient_email": "recipient@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[transfer.Request](t, rec)
	assert.Equal(t, transfer.StatusPending, created.Status)

	// The recipient reads it, then accepts.
	rec = env.do(t, http.MethodGet, "/transfers/"+created.ID.String(), recipientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/transfers/"+created.ID.String()+"/accept", recipientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accepted := decode[transfer.Request](t, rec)
	assert.Equal(t, transfer.StatusAccepted, accepted.Status)

	// Ownership has moved.
	rec = env.do(t, http.MethodGet, "/assets/"+asset.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decode[registry.Asset](t, rec)
	assert.Equal(t, recipient, after.OwnerID)
}

func TestTransferErrorStatuses(t *testing.T) {
	env := newTestEnv(t)

	owner := id.NewUserID()
	ownerToken := env.token(t, owner, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/assets", ownerToken, map[string]string{
		"registration_code": "ERR-0001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	asset := decode[registry.Asset](t, rec)

	t.Run("self transfer is a 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
			"asset_id":        asset.ID.String(),
			"recipient_email": "OWNER@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate pending is a 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
			"asset_id":        asset.ID.String(),
			"recipient_email": "recipient@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
			"asset_id":        asset.ID.String(),
			"recipient_email": "other@example.com",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong recipient accepting is a 403", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/assets", ownerToken, map[string]string{
			"registration_code": "ERR-0002",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		second := decode[registry.Asset](t, rec)

		rec = env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
			"asset_id":        second.ID.String(),
			"recipient_email": "recipient@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decode[transfer.Request](t, rec)

		stranger := env.token(t, id.NewUserID(), "stranger@example.com")
		rec = env.do(t, http.MethodPost, "/transfers/"+created.ID.String()+"/accept", stranger, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed asset ID is a 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/transfers", ownerToken, map[string]string{
			"asset_id":        "not-a-uuid",
			"recipient_email": "recipient@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown transfer is a 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/transfers/"+id.NewTransferID().String()+"/accept", ownerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestClaimLifecycle(t *testing.T) {
	env := newTestEnv(t)

	owner := id.NewUserID()
	ownerToken := env.token(t, owner, "owner@example.com")
	claimant := id.NewUserID()
	claimantToken := env.token(t, claimant, "claimant@example.com")

	rec := env.do(t, http.MethodPost, "/assets", ownerToken, map[string]string{
		"registration_code": "CLM-9999",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	asset := decode[registry.Asset](t, rec)

	// The claimant files a claim.
	rec = env.do(t, http.MethodPost, "/claims", claimantToken, map[string]string{
		"asset_id": asset.ID.String(),
		"message":  "purchased last week",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	filed := decode[claim.Claim](t, rec)
	assert.Equal(t, claim.StatusPending, filed.Status)
	assert.Equal(t, owner, filed.OwnerSnapshot)

	// It shows up in the owner's inbox.
	rec = env.do(t, http.MethodGet, "/claims", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[struct {
		Claims []claim.Claim `json:"claims"`
	}](t, rec)
	require.Len(t, inbox.Claims, 1)
	assert.Equal(t, filed.ID, inbox.Claims[0].ID)

	// The claimant cannot resolve their own claim.
	rec = env.do(t, http.MethodPost, "/claims/"+filed.ID.String()+"/resolve", claimantToken, map[string]string{
		"decision": "approve",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The owner approves; ownership moves to the claimant.
	rec = env.do(t, http.MethodPost, "/claims/"+filed.ID.String()+"/resolve", ownerToken, map[string]string{
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[claim.Claim](t, rec)
	assert.Equal(t, claim.StatusAccepted, resolved.Status)

	rec = env.do(t, http.MethodGet, "/assets/"+asset.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decode[registry.Asset](t, rec)
	assert.Equal(t, claimant, after.OwnerID)
}

func TestResolveRejectsBadDecision(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.token(t, id.NewUserID(), "owner@example.com")

	rec := env.do(t, http.MethodPost, "/claims/"+id.NewClaimID().String()+"/resolve", ownerToken, map[string]string{
		"decision": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
