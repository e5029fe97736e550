package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/config"
	"github.com/norvik-as/fieldops-api/internal/domain"
	"github.com/norvik-as/fieldops-api/internal/identity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongTenant  = errors.New("token issued for another organization")
)

// tokenClaims is the claim set issued by the identity provider
type tokenClaims struct {
	DisplayName    string `json:"name"`
	Role           string `json:"role"`
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

// Auth validates the HMAC-signed bearer token and puts the caller's
// identity on the request context. With no secret configured (local
// development against the demo dataset) every request runs as a fixed
// demo technician.
func Auth(cfg *config.AuthConfig, organizationID string, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg.JWTSecret == "" {
		logger.Warn("auth disabled: no JWT secret configured, using demo identity")
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user := &identity.UserContext{
					UserID:         "demo-user",
					DisplayName:    "Demo Technician",
					Role:           identity.RoleTechnician,
					OrganizationID: organizationID,
				}
				next.ServeHTTP(w, r.WithContext(identity.WithUserContext(r.Context(), user)))
			})
		}
	}

	secret := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := validateRequest(r, secret, organizationID)
			if err != nil {
				logger.Debug("rejected request", zap.Error(err))
				respondUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUserContext(r.Context(), user)))
		})
	}
}

func validateRequest(r *http.Request, secret []byte, organizationID string) (*identity.UserContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("%w: missing authorization header", ErrInvalidToken)
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("%w: authorization header is not a bearer token", ErrInvalidToken)
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.OrganizationID != organizationID {
		return nil, ErrWrongTenant
	}

	role := identity.Role(claims.Role)
	if !role.IsValid() {
		role = identity.RoleTechnician
	}

	return &identity.UserContext{
		UserID:         claims.Subject,
		DisplayName:    claims.DisplayName,
		Role:           role,
		OrganizationID: claims.OrganizationID,
	}, nil
}

func respondUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   "Unauthorized",
		Message: err.Error(),
	})
}
