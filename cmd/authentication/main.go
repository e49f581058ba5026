// This is a **mock authentication service**, designed to provide JWT tokens
// for the payroll service, simulating user authentication.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"       // Default port for the authentication service
	defaultSecret = "jwt_secret" // Secret for signing JWT
	defaultUser   = "hr-admin"
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenIssuer struct {
	secret string
	logger *zap.Logger
}

// ServeHTTP generates a JWT for the user named in the "user" query
// parameter and returns it in JSON response.
func (i *tokenIssuer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = defaultUser
	}

	token, err := auth.GenerateToken(userID, i.secret, auth.DefaultTTL)
	if err != nil {
		i.logger.Error("Failed to generate token", zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	i.logger.Info("Token issued", zap.String("user", userID))

	resp := TokenResponse{Token: token, ExpiresAt: time.Now().Add(auth.DefaultTTL).UTC()}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode token", http.StatusInternalServerError)
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	secret := envOr("JWT_SECRET", defaultSecret)
	port := envOr("AUTH_PORT", defaultPort)

	mux := http.NewServeMux()
	mux.Handle("/token", &tokenIssuer{secret: secret, logger: logger.Named("auth_service")})

	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("Authentication service running", zap.String("port", port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Authentication service failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
