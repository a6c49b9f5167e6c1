package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// requireScope пропускает запрос только с Bearer токеном, содержащим scope.
// Без TokenManager проверка выключена.
func (rs *RestServer) requireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rs.tokens == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Требуется Bearer токен",
			})
			return
		}

		claims, err := rs.tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Success: false,
				Message: "Недостаточно прав: нужен " + scope,
			})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}
