package api

import "github.com/gin-gonic/gin"

// identityHeaders are checked in order when attributing a request to a
// caller. The first two are set by oauth2-proxy deployments, the third by
// kube-rbac-proxy. Requests arriving with none of them (local development,
// service-to-service calls) fall back to a generic author.
var identityHeaders = []string{
	"X-Forwarded-User",
	"X-Forwarded-Email",
	"X-Remote-User",
}

const defaultAuthor = "api-client"

// extractAuthor resolves who issued the request, for scrub-job attribution.
func extractAuthor(c *gin.Context) string {
	for _, h := range identityHeaders {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return defaultAuthor
}
