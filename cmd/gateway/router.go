package main

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 1x1 transparent png
var pixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

// newRouter is the demo application served behind the gateway.
func newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health-check", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/hello", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"hello":  c.DefaultQuery("name", "world"),
			"scheme": c.GetHeader("X-Forwarded-Proto"),
		})
	})
	r.POST("/echo", func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.Data(http.StatusOK, c.ContentType(), data)
	})
	r.GET("/pixel.png", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", pixel)
	})

	return r
}
