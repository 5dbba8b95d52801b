package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(v *Verifier, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", mw, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret", "idp", nil)
	token, err := v.Issue("user-1", time.Minute)
	require.NoError(t, err)

	sub, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret", "idp", nil)

	expired, err := v.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	otherKey, err := NewVerifier("other", "idp", nil).Issue("user-1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(otherKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewVerifier("secret", "someone", nil).Issue("user-1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(otherIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "idp"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOptional(t *testing.T) {
	v := NewVerifier("secret", "", nil)
	r := newRouter(v, v.Optional())

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	token, err := v.Issue("user-1", time.Minute)
	require.NoError(t, err)
	w = do(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	w = do(r, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequired(t *testing.T) {
	v := NewVerifier("secret", "", nil)
	r := newRouter(v, v.Required())

	w := do(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")

	token, err := v.Issue("user-1", time.Minute)
	require.NoError(t, err)
	w = do(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}
