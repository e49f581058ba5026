package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	const (
		validSecret   = "test-secret"
		invalidSecret = "wrong-secret"
		userID        = "test-user"
	)

	generateToken := func(secret string, expiresAt time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": userID,
			"exp": expiresAt.Unix(),
		})
		tokenString, _ := token.SignedString([]byte(secret))
		return tokenString
	}

	tests := []struct {
		name         string
		method       string
		path         string
		header       string
		expectedCode int
		expectUser   bool
	}{
		{
			name:         "read is open",
			method:       http.MethodGet,
			path:         "/v1/employees/123",
			expectedCode: http.StatusOK,
		},
		{
			name:         "health is open",
			method:       http.MethodPost,
			path:         "/healthz",
			expectedCode: http.StatusOK,
		},
		{
			name:         "write with valid token",
			method:       http.MethodPost,
			path:         "/v1/employees",
			header:       "Bearer " + generateToken(validSecret, time.Now().Add(time.Hour)),
			expectedCode: http.StatusOK,
			expectUser:   true,
		},
		{
			name:         "patch with valid token",
			method:       http.MethodPatch,
			path:         "/v1/salaries/1/notes",
			header:       "Bearer " + generateToken(validSecret, time.Now().Add(time.Hour)),
			expectedCode: http.StatusOK,
			expectUser:   true,
		},
		{
			name:         "write without header",
			method:       http.MethodPost,
			path:         "/v1/departments",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "write without bearer prefix",
			method:       http.MethodPost,
			path:         "/v1/departments",
			header:       generateToken(validSecret, time.Now().Add(time.Hour)),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "write with wrong secret",
			method:       http.MethodPost,
			path:         "/v1/departments",
			header:       "Bearer " + generateToken(invalidSecret, time.Now().Add(time.Hour)),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "write with expired token",
			method:       http.MethodDelete,
			path:         "/v1/departments/1",
			header:       "Bearer " + generateToken(validSecret, time.Now().Add(-time.Hour)),
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			var hasUser bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, hasUser = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			HTTPMiddleware(next, validSecret).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectUser, hasUser)
			if tt.expectUser {
				assert.Equal(t, userID, gotUser)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken("payroll-admin", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := validateToken(token, "secret")
	require.NoError(t, err)
	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "payroll-admin", sub)

	_, err = validateToken(token, "other")
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnsignedAndMissingExpiry(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = validateToken(raw, "secret")
	assert.Error(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	raw, err = noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = validateToken(raw, "secret")
	assert.Error(t, err)
}

func TestUserFromContextWithoutClaims(t *testing.T) {
	_, ok := UserFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
