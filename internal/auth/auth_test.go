package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	user := &models.User{ID: uuid.New(), Email: "a@b.c", Role: models.RoleStudent}
	token, err := svc.Generate(user)
	require.NoError(t, err)

	gotID, role, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)
	assert.Equal(t, models.RoleStudent, role)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, "a@b.c", claims.Email)

	_, _, err = NewJWTService("other", 1).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejects(t *testing.T) {
	svc := NewJWTService("secret", 1)
	now := time.Now()
	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	_, err := svc.Validate(sign(jwt.SigningMethodHS256, []byte("secret"), Claims{RegisteredClaims: expired}))
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign := valid
	foreign.Issuer = "someone-else"
	_, err = svc.Validate(sign(jwt.SigningMethodHS256, []byte("secret"), Claims{RegisteredClaims: foreign}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExpiry := valid
	noExpiry.ExpiresAt = nil
	_, err = svc.Validate(sign(jwt.SigningMethodHS256, []byte("secret"), Claims{RegisteredClaims: noExpiry}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	badSubject := valid
	badSubject.Subject = "not-a-uuid"
	_, err = svc.Validate(sign(jwt.SigningMethodHS256, []byte("secret"), Claims{RegisteredClaims: badSubject}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate(sign(jwt.SigningMethodHS512, []byte("secret"), Claims{RegisteredClaims: valid}))
	assert.ErrorIs(t, err, ErrInvalidToken, "only HS256 is accepted")
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewJWTService("secret", 1)
	h := NewHandler(NewMemoryUsers(), svc, []string{"Boss@example.com"}, nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	w := postJSON(r, "/auth/register", RegisterRequest{Email: "student@example.com", Password: "secret1", FullName: "Sam"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/auth/register", RegisterRequest{Email: "student@example.com", Password: "secret1", FullName: "Sam"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/auth/register", RegisterRequest{Email: "boss@example.com", Password: "secret1", FullName: "Boss"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleAdmin, resp.Data.User.Role)

	w = postJSON(r, "/auth/login", LoginRequest{Email: "student@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/auth/login", LoginRequest{Email: "STUDENT@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	_, role, err := svc.ValidateToken(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
}
