package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
)

// SessionHandler issues guest sessions. When an access password hash is
// configured the request must carry the matching password; an empty hash
// means open access.
func SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hash := configuration.GetString("Server", "access_password_hash", "")
	if hash != "" {
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)); err != nil {
			logger.Warn(logger.AreaAuth, "access password rejected from %s", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	sessionID := uuid.NewString()
	token, err := GenerateSessionToken(sessionID)
	if err != nil {
		logger.Error(logger.AreaAuth, "cannot issue session token: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"sessionId": sessionID,
		"token":     token,
	})
}

// SessionFromRequest extracts and validates the session token from the
// Authorization header or the token query parameter (websocket upgrades
// cannot set headers from the browser).
func SessionFromRequest(r *http.Request) (string, error) {
	tokenString := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenString = strings.TrimPrefix(h, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		tokenString = q
	}
	if tokenString == "" {
		return "", ErrInvalidToken
	}
	return ValidateSessionToken(tokenString)
}

// HashPassword produces a bcrypt hash suitable for the
// access_password_hash configuration key.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
