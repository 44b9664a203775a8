package security

import (
	"errors"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

// TokenSigner выпускает и проверяет bearer-токены сотрудников (HS256).
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret, issuer string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenSigner) TTL() time.Duration { return s.ttl }

type StaffClaims struct {
	jwt.StandardClaims
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func (s *TokenSigner) Sign(st domain.Staff) (string, error) {
	now := s.now()
	claims := StaffClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   st.ID,
			Issuer:    s.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
		Email: st.Email,
		Role:  st.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s *TokenSigner) Parse(tokenStr string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidSubject
	}

	return claims, nil
}
