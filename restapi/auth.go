package restapi

import (
	"net/http"
	"strings"

	log "log/slog"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"

	"github.com/magiccloud/cqldata"
)

const claimsKey = "claims"

// TokenVerifier verifies a bearer access token and returns its claims.
type TokenVerifier interface {
	VerifyAccessToken(token string) (map[string]any, error)
}

type oktaVerifier struct {
	verifier *jwtverifier.JwtVerifier
}

// NewOktaVerifier verifies tokens issued by issuer, e.g. "https://{domain}/oauth2/default",
// for audience and, when not empty, clientID.
func NewOktaVerifier(issuer string, audience string, clientID string) TokenVerifier {
	toValidate := map[string]string{
		"aud": audience,
	}
	if clientID != "" {
		toValidate["cid"] = clientID
	}
	verifierSetup := jwtverifier.JwtVerifier{
		Issuer:           issuer,
		ClaimsToValidate: toValidate,
	}
	return &oktaVerifier{verifier: verifierSetup.New()}
}

func (o *oktaVerifier) VerifyAccessToken(token string) (map[string]any, error) {
	jwt, err := o.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	return jwt.Claims, nil
}

// verifyHeaderToken rejects requests without a valid bearer token. A nil verifier lets
// every request through.
func verifyHeaderToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		token := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(token, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		claims, err := verifier.VerifyAccessToken(strings.TrimPrefix(token, "Bearer "))
		if err != nil {
			log.Warn("bearer token verification failed", "error", err, "request_id", c.GetString(requestIDKey))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": err.Error()})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// tenantRoot carries the tenant root folder of the request in its context. With a verifier the
// root comes from the token's tenant claim, which must be present when a claim is configured.
// Without one it comes from the tenant header. Requests naming no tenant use the services' root.
func tenantRoot(options Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var root string
		switch {
		case options.Verifier != nil && options.TenantClaim != "":
			claims, _ := c.Get(claimsKey)
			m, _ := claims.(map[string]any)
			root, _ = m[options.TenantClaim].(string)
			if root == "" {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "access token has no '" + options.TenantClaim + "' claim"})
				return
			}
		case options.Verifier == nil && options.TenantHeader != "":
			root = c.GetHeader(options.TenantHeader)
		}
		if root == "" {
			c.Next()
			return
		}
		resolver := cqldata.NewRootResolver(root, "")
		if _, err := cqldata.ScopeOf(resolver); err != nil {
			fail(c, cqldata.Errorf(cqldata.PreconditionFailed, "invalid tenant root: %v", err))
			return
		}
		c.Request = c.Request.WithContext(cqldata.WithRoot(c.Request.Context(), resolver))
		c.Next()
	}
}
