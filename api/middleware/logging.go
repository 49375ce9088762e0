package middleware

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceHeader 请求追踪ID的请求头
const TraceHeader = "X-Trace-ID"

const traceKey = "TraceID"

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// LogOptions 进程日志配置
type LogOptions struct {
	Level      string // debug info warn error
	File       string // 为空时只写标准输出
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ConfigureLogger 设置日志级别和输出，配置了文件时同时写入按大小轮转的日志文件
func ConfigureLogger(opts LogOptions) error {
	if opts.Level != "" {
		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}
	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}))
	return nil
}

// GetLogger 返回进程共用的日志记录器
func GetLogger() *logrus.Logger {
	return log
}

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		var session string
		if scope := Scope(c); scope != nil {
			session = scope.Session()
		}
		log.WithFields(logrus.Fields{
			FieldStatus:   c.Writer.Status(),
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
			FieldTraceID:  TraceID(c),
			FieldSession:  session,
		}).Info("HTTP request")
	}
}

// RequestLogger 调试模式下记录JSON请求体，上传的文件不记录
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !log.IsLevelEnabled(logrus.DebugLevel) || c.ContentType() != gin.MIMEJSON {
			c.Next()
			return
		}
		var buf bytes.Buffer
		body, _ := io.ReadAll(io.TeeReader(c.Request.Body, &buf))
		c.Request.Body = io.NopCloser(&buf)
		if len(body) > 0 {
			log.WithFields(logrus.Fields{
				FieldMethod: c.Request.Method,
				FieldPath:   c.Request.URL.Path,
				"body":      string(body),
			}).Debug("Request body")
		}
		c.Next()
	}
}

// SetTraceID 读取或生成追踪ID，写入上下文和响应头
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceKey, traceID)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// TraceID 当前请求的追踪ID
func TraceID(c *gin.Context) string {
	return c.GetString(traceKey)
}

// 常用日志字段
const (
	FieldTraceID  = "trace_id"
	FieldSession  = "session"
	FieldPath     = "path"
	FieldMethod   = "method"
	FieldStatus   = "status_code"
	FieldLatency  = "latency"
	FieldClientIP = "client_ip"
	FieldError    = "error"
)
