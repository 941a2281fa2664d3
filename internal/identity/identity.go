package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
)

var Module = fx.Module("identity",
	fx.Provide(NewDecoder),
)

// Claims is the payload of the bearer token issued by the user service.
type Claims struct {
	UserID    domain.FlexString `json:"userId"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Locale    string            `json:"locale"`
	AvatarURI string            `json:"avatar_uri"`
	jwt.RegisteredClaims
}

// Decoder extracts the caller identity from an Authorization header.
//
// Without a secret the token payload is decoded but not verified; the user
// service and this relay sit behind the same gateway. With a secret the
// token must carry a valid HS256 signature.
type Decoder struct {
	secret []byte
	parser *jwt.Parser
}

func NewDecoder(cfg config.Config, log *zap.Logger) *Decoder {
	d := &Decoder{parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))}
	if secret := strings.TrimSpace(cfg.IdentityJWTSecret); secret != "" {
		d.secret = []byte(secret)
	} else if log != nil {
		log.Warn("identity tokens are decoded without signature verification")
	}
	return d
}

// Verifies reports whether signatures are checked.
func (d *Decoder) Verifies() bool {
	return len(d.secret) > 0
}

// Decode parses the Authorization header value.
func (d *Decoder) Decode(header string) (domain.Identity, error) {
	token := strings.TrimSpace(strings.Replace(header, "Bearer", "", 1))
	if strings.TrimSpace(header) == "" {
		return domain.Identity{}, ErrMissingToken
	}
	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	claims := &Claims{}
	var err error
	if d.Verifies() {
		_, err = d.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return d.secret, nil
		})
	} else {
		_, _, err = new(jwt.Parser).ParseUnverified(token, claims)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return domain.Identity{
		UserID:    claims.UserID.String(),
		Username:  claims.Username,
		Email:     claims.Email,
		Locale:    claims.Locale,
		AvatarURI: claims.AvatarURI,
	}, nil
}
