package api

import (
	"context"
	"net/http"
	"strings"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "subject"

// Verifier checks HS256 bearer tokens issued to sensor devices.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New().WithMessage(errors.ErrInvalidConfig, "auth secret must not be empty")
	}

	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify parses the token and returns its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	errFactory := errors.New()

	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", errFactory.Wrap(ErrUnauthorized, err)
	}
	if !token.Valid {
		return "", errFactory.New(ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", errFactory.WithMessage(ErrUnauthorized, "token has no subject")
	}

	return claims.Subject, nil
}

// Require rejects requests without a valid bearer token.
func (v *Verifier) Require(onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				onReject()
				writeError(w, http.StatusUnauthorized, errors.New().WithMessage(ErrUnauthorized, "bearer token required"))
				return
			}

			subject, err := v.Verify(token)
			if err != nil {
				onReject()
				logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected bearer token")
				writeError(w, http.StatusUnauthorized, errors.New().WithMessage(ErrUnauthorized, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated device, if any.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
