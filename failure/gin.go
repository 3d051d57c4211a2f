package failure

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gin returns a gin middleware that hands the last error recorded on the context,
// or a panic, to the layer.
func (l *Layer) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				l.handleGin(c, panicError(rec))
			}
		}()

		c.Next()

		if last := c.Errors.Last(); last != nil {
			l.handleGin(c, last.Err)
		}
	}
}

func (l *Layer) handleGin(c *gin.Context, err error) {
	l.Handle(c.Request.Context(), ginWriter{c.Writer}, c.Request, err)
	c.Abort()
}

// ginWriter reports gin's own notion of a started response.
type ginWriter struct {
	gin.ResponseWriter
}

func (w ginWriter) Started() bool {
	return w.Written()
}
