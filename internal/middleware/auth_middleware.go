package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"safecircle/internal/utils"
	"safecircle/pkg/logger"
)

const senderSubjectKey = "sender_subject"

// SubjectVerifier checks a bearer credential and returns its subject.
type SubjectVerifier interface {
	Subject(ctx context.Context, token string) (string, error)
}

// SenderAuth resolves the sender of a request. A missing or failing
// credential makes the request anonymous, unless required is set, in which
// case it is rejected with 401. A nil verifier accepts no credential.
func SenderAuth(verifier SubjectVerifier, required bool, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.GetHeader("Authorization"))

		var subject string
		if present && verifier != nil {
			sub, err := verifier.Subject(c.Request.Context(), token)
			if err == nil {
				subject = sub
			} else {
				log.WithContext(c.Request.Context()).LogSecurityEvent("sender_credential_rejected", logger.SeverityLow, map[string]interface{}{
					"reason":    err.Error(),
					"client_ip": c.ClientIP(),
					"required":  required,
				})
			}
		}

		if subject == "" && required {
			utils.UnauthorizedResponse(c, utils.ErrAuthenticationFails)
			return
		}

		c.Set(senderSubjectKey, subject)
		if subject != "" {
			ctx := context.WithValue(c.Request.Context(), logger.SenderIDKey, subject)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// SenderSubject returns the verified subject, or "" for anonymous senders.
func SenderSubject(c *gin.Context) string {
	return c.GetString(senderSubjectKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
