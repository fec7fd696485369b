package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(Config{
		Login:        "admin",
		PasswordHash: string(hash),
		JWTSecret:    []byte("secret"),
		JWTTTL:       time.Hour,
	}, clock.NewSystem())
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Authenticate("admin", "s3cret-pass")
	require.NoError(t, err)

	sub, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)

	_, err = svc.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, err = svc.Authenticate("root", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestVerifyRejects(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidCreds)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"})
	signed, err := other.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidCreds)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, err = expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestVerifyUsesServiceClock(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	clk := &stepClock{now: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Config{
		Login:        "admin",
		PasswordHash: string(hash),
		JWTSecret:    []byte("secret"),
		JWTTTL:       time.Hour,
	}, clk)

	token, err := svc.Authenticate("admin", "s3cret-pass")
	require.NoError(t, err)

	sub, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)

	clk.now = clk.now.Add(2 * time.Hour)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	svc := newTestService(t)

	forever := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"})
	signed, err := forever.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestDisabled(t *testing.T) {
	svc := NewService(Config{Login: "admin"}, clock.NewSystem())
	assert.False(t, svc.Enabled())

	_, err := svc.Authenticate("admin", "")
	assert.ErrorIs(t, err, ErrDisabled)

	rec := httptest.NewRecorder()
	NewHandler(svc).Login(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	h := NewHandler(newTestService(t))

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"login":"admin","password":"s3cret-pass"}`))
		h.Login(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp loginResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "Bearer "+resp.Token, rec.Header().Get("Authorization"))
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"login":"admin","password":"nope"}`))
		h.Login(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{`))
		h.Login(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
