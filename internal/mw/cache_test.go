package mw

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCachedRouter(hits *int) *gin.Engine {
	r := gin.New()
	store := cache.New(time.Minute, time.Minute)
	r.Use(Cache(store, time.Minute))

	r.GET("/data", func(c *gin.Context) {
		*hits++
		c.String(http.StatusOK, fmt.Sprintf("hit %d", *hits))
	})
	r.POST("/data", func(c *gin.Context) {
		*hits++
		c.Status(http.StatusCreated)
	})
	r.GET("/stream", func(c *gin.Context) {
		*hits++
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "event: heartbeat\ndata: ping\n\n")
	})
	return r
}

func TestCache_ServesRepeatedGETFromCache(t *testing.T) {
	hits := 0
	router := newCachedRouter(&hits)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/data", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hit 1", w.Body.String())
	}
	assert.Equal(t, 1, hits, "second GET should be served from cache")
}

func TestCache_SkipsNonGET(t *testing.T) {
	hits := 0
	router := newCachedRouter(&hits)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/data", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, hits)
}

func TestCache_SkipsEventStreamRequests(t *testing.T) {
	hits := 0
	router := newCachedRouter(&hits)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/stream", nil)
		req.Header.Set("Accept", "text/event-stream")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, hits, "event stream requests must bypass the cache")
}

func TestCache_SkipsEventStreamResponses(t *testing.T) {
	hits := 0
	router := newCachedRouter(&hits)

	// No Accept header; the handler still declares an event stream, so the
	// response must not be stored.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/stream", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, hits)
}
