package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("stock", "/stock")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group)
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/stock/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterMiddleware(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	var sawMiddleware bool
	r.Use(func(c *gin.Context) {
		sawMiddleware = true
		c.Next()
	})

	group := NewDomainGroup("stock", "/stock")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group)
	r.Setup()

	req := httptest.NewRequest("GET", "/api/v1/stock/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sawMiddleware)
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("reservations", "/reservations")
		assert.Equal(t, "reservations", g.Name())
		assert.Equal(t, "/reservations", g.Prefix())
	})

	t.Run("registers GET route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("stock", "/stock")
		g.GET("/on-hand", func(c *gin.Context) {
			c.String(http.StatusOK, "on-hand")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("GET", "/api/v1/stock/on-hand", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registers POST route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("stock", "/stock")
		g.POST("/movements", func(c *gin.Context) {
			c.String(http.StatusCreated, "created")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("POST", "/api/v1/stock/movements", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("registers PATCH route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("picking", "/picking-tasks")
		g.PATCH("/:id", func(c *gin.Context) {
			c.String(http.StatusOK, "updated")
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("PATCH", "/api/v1/picking-tasks/123", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registers DELETE route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("reservations", "/reservations")
		g.DELETE("/:id", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		api := engine.Group("/api/v1")
		g.RegisterRoutes(api)

		req := httptest.NewRequest("DELETE", "/api/v1/reservations/123", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
