package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/pitch-analyst/api/handler"
	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/internal/corpus"
)

// Handlers 路由用到的处理器
type Handlers struct {
	Pitch     *handler.PitchHandler
	Memo      *handler.MemoHandler
	Benchmark *handler.BenchmarkHandler
	Task      *handler.TaskHandler
	Health    *handler.HealthHandler
}

// SetupRouter 设置API路由
func SetupRouter(h Handlers, registry *corpus.Registry, maxUploadBytes int64) *gin.Engine {
	router := gin.New()
	if maxUploadBytes > 0 {
		router.MaxMultipartMemory = maxUploadBytes
	}

	router.Use(middleware.SetTraceID())
	router.Use(middleware.SessionScope(registry))
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(Cors())
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	api := router.Group("/api")
	{
		// POST /api/upload/?mode=raw
		api.POST("/upload/", h.Pitch.Upload)
		api.POST("/deal_note/", h.Pitch.DealNote)
		api.POST("/generate_memo/", h.Memo.Generate)
		api.POST("/benchmark/", h.Benchmark.Benchmark)

		memos := api.Group("/memos")
		{
			memos.POST("/", h.Benchmark.IngestMemo)
			memos.GET("/", h.Benchmark.ListMemos)
		}

		api.GET("/tasks/:id", h.Task.GetTask)
		api.GET("/health", h.Health.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID, X-Session-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Trace-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
