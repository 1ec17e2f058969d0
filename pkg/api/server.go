// Package api 提供只读的采集状态查询接口。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"fundbot/pkg/dictionary"
	"fundbot/pkg/logger"
	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Config HTTP 服务配置
type Config struct {
	Addr string `mapstructure:"addr" validate:"required"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
}

// Sources 服务读取的文件
type Sources struct {
	SummaryPath    string
	DictionaryPath string
}

// RecordReader 进度记录读取接口
type RecordReader interface {
	Load(market string) (tracker.Record, error)
}

// FileChecker 数据集文件检查接口
type FileChecker interface {
	Exists(market string) bool
	Path(market string) string
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MarketStatus 单个市场的状态
type MarketStatus struct {
	Market        string                  `json:"market"`
	LastFetchDate *string                 `json:"last_fetch_date"`
	IDs           []string                `json:"ids"`
	FileExists    bool                    `json:"file_exists"`
	FilePath      string                  `json:"file_path"`
	Dictionary    *dictionary.MarketEntry `json:"dictionary,omitempty"`
}

// Server 只读状态服务
type Server struct {
	config  Config
	sources Sources
	records RecordReader
	files   FileChecker
	markets []string
	log     *logrus.Entry
	server  *http.Server
}

// NewServer 创建状态服务，markets 为按采集顺序排列的市场名称
func NewServer(config Config, sources Sources, records RecordReader, files FileChecker, markets []string, log logrus.FieldLogger) *Server {
	return &Server{
		config:  config,
		sources: sources,
		records: records,
		files:   files,
		markets: markets,
		log:     logger.WithComponent(log, "api"),
	}
}

// Router 构建路由
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", s.healthCheck)
	router.GET("/summary", s.getSummary)
	router.GET("/markets", s.getMarkets)
	router.GET("/markets/:market", s.getMarket)
	return router
}

// Start 在后台启动 HTTP 服务
func (s *Server) Start() error {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("addr", s.config.Addr).Info("Starting API server...")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Failed to start HTTP server")
		}
	}()
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
	}
	checks := map[string]string{}

	if _, err := os.Stat(s.sources.SummaryPath); err != nil {
		checks["summary"] = "missing"
	} else {
		checks["summary"] = "ok"
	}
	if len(s.markets) > 0 {
		if _, err := s.records.Load(s.markets[0]); err != nil {
			checks["tracker"] = "error: " + err.Error()
			health["status"] = "degraded"
		} else {
			checks["tracker"] = "ok"
		}
	}
	health["checks"] = checks

	if health["status"] == "ok" {
		c.JSON(http.StatusOK, health)
		return
	}
	c.JSON(http.StatusServiceUnavailable, health)
}

func (s *Server) getSummary(c *gin.Context) {
	data, err := os.ReadFile(s.sources.SummaryPath)
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "No collection run has produced a summary yet"})
		return
	}
	if err != nil || !json.Valid(data) {
		s.log.WithError(err).Error("Failed to read summary")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to read summary"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) getMarkets(c *gin.Context) {
	statuses := make([]MarketStatus, 0, len(s.markets))
	for _, m := range s.markets {
		st, err := s.status(m)
		if err != nil {
			s.log.WithError(err).WithField("market", m).Error("Failed to load tracker record")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
			return
		}
		statuses = append(statuses, st)
	}
	c.JSON(http.StatusOK, gin.H{"markets": statuses})
}

func (s *Server) getMarket(c *gin.Context) {
	market := c.Param("market")
	if !s.known(market) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Unknown market " + market})
		return
	}

	st, err := s.status(market)
	if err != nil {
		s.log.WithError(err).WithField("market", market).Error("Failed to load tracker record")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	if s.sources.DictionaryPath != "" {
		if d, err := dictionary.Load(s.sources.DictionaryPath); err == nil {
			if entry, ok := d.Markets[market]; ok {
				st.Dictionary = &entry
			}
		}
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) status(market string) (MarketStatus, error) {
	rec, err := s.records.Load(market)
	if err != nil {
		return MarketStatus{}, err
	}
	st := MarketStatus{
		Market:     market,
		IDs:        rec.IDs,
		FileExists: s.files.Exists(market),
		FilePath:   s.files.Path(market),
	}
	if rec.LastFetchDate != nil {
		d := timing.FormatDate(*rec.LastFetchDate)
		st.LastFetchDate = &d
	}
	return st, nil
}

func (s *Server) known(market string) bool {
	for _, m := range s.markets {
		if m == market {
			return true
		}
	}
	return false
}
