package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/config"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity - пользователь, извлеченный из токена
type Identity struct {
	ID       string
	Username string
	Role     string
}

func (i Identity) Requester() models.Requester {
	return models.Requester{ID: i.ID, Username: i.Username, Role: i.Role}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Username          string `json:"username,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Role              string `json:"role,omitempty"`
}

type JWTAuth struct {
	keyfunc jwt.Keyfunc
	methods []string
	issuer  string
	leeway  time.Duration
	logger  zerolog.Logger
}

// NewJWTAuth выбирает источник ключей: JWKS, если задан jwks_url, иначе HS256 секрет.
func NewJWTAuth(ctx context.Context, cfg config.AuthConfig, logger zerolog.Logger) (*JWTAuth, error) {
	auth := &JWTAuth{
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		logger: logger.With().Str("component", "jwt_auth").Logger(),
	}

	if cfg.JWKSURL == "" {
		if cfg.JWTSecret == "" {
			return nil, errors.New("jwt secret is required when jwks url is not set")
		}
		secret := []byte(cfg.JWTSecret)
		auth.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		auth.methods = []string{jwt.SigningMethodHS256.Alg()}
		return auth, nil
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			auth.logger.Error().Err(err).Str("url", cfg.JWKSURL).Msg("Failed to refresh JWKS")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	auth.keyfunc = k.KeyfuncCtx(ctx)
	auth.methods = []string{"RS256", "ES256"}
	return auth, nil
}

// NewJWTAuthWithKeyfunc нужен тестам и внешним провайдерам ключей
func NewJWTAuthWithKeyfunc(kf jwt.Keyfunc, methods []string, issuer string, logger zerolog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfunc: kf,
		methods: methods,
		issuer:  issuer,
		logger:  logger,
	}
}

func (a *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				writeUnauthorized(w, "Missing or malformed bearer token")
				return
			}

			identity, err := a.parse(parts[1])
			if err != nil {
				a.logger.Debug().
					Err(err).
					Str("ip", r.RemoteAddr).
					Msg("Token rejected")
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *JWTAuth) parse(raw string) (Identity, error) {
	claims := &tokenClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	if _, err := jwt.ParseWithClaims(raw, claims, a.keyfunc, opts...); err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}

	username := claims.Username
	if username == "" {
		username = claims.PreferredUsername
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}

	return Identity{ID: claims.Subject, Username: username, Role: role}, nil
}

// Anonymous подставляет фиксированного пользователя, когда auth.enabled=false
func Anonymous(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    "UNAUTHORIZED",
			"message": message,
			"type":    http.StatusText(http.StatusUnauthorized),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
