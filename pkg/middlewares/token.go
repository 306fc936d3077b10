package middlewares

import (
	"crypto/subtle"
	"strings"

	errprocess "video_pipeline_service/pkg/err"
	t_token "video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"

	// TranscoderSecretHeader shared secret presented by transcode workers
	TranscoderSecretHeader = "X-Transcoder-Secret"
)

// extractToken Authorization: Bearer first, then query, then cookie
func extractToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if tokenStr := c.Query(QueryToken); tokenStr != "" {
		return tokenStr
	}
	// 如果查詢參數中沒有 token，則嘗試從 Cookie 中獲取
	return c.Cookies(CookieToken)
}

// JWTMiddleware validates the user JWT and stores user_id / role in locals
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			return errprocess.Unauthorized("missing token")
		}

		claims, err := t_token.ParseJWTFunc(tokenStr)
		if err != nil {
			return errprocess.Unauthorized("invalid token")
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

// OptionalJWTMiddleware like JWTMiddleware but anonymous requests pass through.
// A present but invalid token is still rejected.
func OptionalJWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			return c.Next()
		}

		claims, err := t_token.ParseJWTFunc(tokenStr)
		if err != nil {
			return errprocess.Unauthorized("invalid token")
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

// TranscoderAuth compare X-Transcoder-Secret against secret in constant time
func TranscoderAuth(secret string) fiber.Handler {
	want := []byte(secret)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(TranscoderSecretHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			return errprocess.Unauthorized("invalid transcoder secret")
		}
		return c.Next()
	}
}

// Caller user_id and role set by the JWT middlewares, empty when anonymous
func Caller(c *fiber.Ctx) (memberID, role string) {
	memberID, _ = c.Locals(TokenMemberID).(string)
	role, _ = c.Locals(TokenRole).(string)
	return memberID, role
}
