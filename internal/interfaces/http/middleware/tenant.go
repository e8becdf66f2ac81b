package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms/backend/internal/interfaces/http/dto"
)

// TenantIDKey is the gin context key for the tenant ID
const TenantIDKey = "tenant_id"

// TenantHeader is the header carrying the caller's tenant
const TenantHeader = "X-Tenant-ID"

// Tenant extracts and validates the tenant ID from the request header.
// Every stock route is tenant scoped; requests without a valid tenant are
// rejected before reaching a handler.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse("MISSING_TENANT", "X-Tenant-ID header is required"))
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse("INVALID_TENANT", "X-Tenant-ID header must be a valid UUID"))
			return
		}
		c.Set(TenantIDKey, tenantID.String())
		c.Next()
	}
}

// GetTenantID reads the tenant ID set by the Tenant middleware
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}
