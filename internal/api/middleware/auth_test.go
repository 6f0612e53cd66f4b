package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(allowed []string, allowLocalhost bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(allowed, allowLocalhost))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func getWithOrigin(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	r := corsRouter([]string{"https://club.tp.edu.tw/"}, false)

	w := getWithOrigin(r, "https://club.tp.edu.tw")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://club.tp.edu.tw", w.Header().Get("Access-Control-Allow-Origin"))

	w = getWithOrigin(r, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_LocalhostOnlyInDevelopment(t *testing.T) {
	prod := corsRouter([]string{"https://club.tp.edu.tw"}, false)
	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:3000"} {
		w := getWithOrigin(prod, origin)
		assert.Equal(t, http.StatusForbidden, w.Code, origin)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}

	dev := corsRouter([]string{"https://club.tp.edu.tw"}, true)
	w := getWithOrigin(dev, "http://localhost:5173")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
