package server

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/nhle/todopro/internal/token"
)

const (
	requestIDKey = "requestID"
	claimsKey    = "claims"
)

var bearerPattern = regexp.MustCompile(`Bearer\s(\S+)`)

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		s.logger.Infow("request",
			"requestID", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"clientIP", c.ClientIP(),
			"latency", time.Since(start).String(),
			"userAgent", c.Request.UserAgent(),
		)
	}
}

// requireToken accepts the token from an Authorization bearer header or,
// failing that, from a "token" field in the JSON body.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tok string
		if m := bearerPattern.FindStringSubmatch(c.GetHeader("Authorization")); m != nil {
			tok = m[1]
		} else {
			var body struct {
				Token string `json:"token"`
			}
			if c.Request.ContentLength != 0 {
				_ = c.ShouldBindBodyWith(&body, binding.JSON)
			}
			tok = body.Token
		}

		if tok == "" {
			fail(c, http.StatusUnauthorized, "Token required")
			return
		}

		claims, err := token.Decode(tok)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if claims.Expired(s.now()) {
			fail(c, http.StatusUnauthorized, "Token expired")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) token.Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(token.Claims)
	return claims
}

// rateLimited applies the sliding-window limit per client IP. A limiter
// failure lets the request through.
func (s *Server) rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		key := c.FullPath() + ":" + c.ClientIP()
		result, err := s.limiter.Allow(c.Request.Context(), key, s.rateLimit, rateWindow)
		if err != nil {
			s.logger.Warnw("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retry := time.Until(result.ResetAt)
			if retry < time.Second {
				retry = time.Second
			}
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
			fail(c, http.StatusTooManyRequests, "Слишком много запросов. Попробуйте позже.")
			return
		}
		c.Next()
	}
}
