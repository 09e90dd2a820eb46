package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// requestIDHeader carries the id assigned to every request
	requestIDHeader = "X-Request-ID"
	// imagesField is the multipart field holding uploaded images
	imagesField = "images"
	// maxImageBytes limits the size of a single uploaded image
	maxImageBytes = 8 << 20
)

// recognizeResponse is the body of a successful recognition request
type recognizeResponse struct {
	RequestID string   `json:"request_id"`
	Results   []Result `json:"results"`
}

// errorResponse is the body of a failed request
type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// Handler exposes the service over HTTP
type Handler struct {
	svc     *Service
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewRouter returns the gin engine serving the recognition API
func NewRouter(svc *Service, metrics *Metrics, log *zap.SugaredLogger) *gin.Engine {

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	h := &Handler{
		svc:     svc,
		metrics: metrics,
		log:     log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.GET("/ping", h.Ping)
	r.GET("/v1/signature", h.Signature)
	r.POST("/v1/recognize", h.Recognize)

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return r
}

// requestID assigns a uuid to every request, keeping one the client sent
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {

		id := c.GetHeader(requestIDHeader)

		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// GET /ping
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.svc.Ping()})
}

// GET /v1/signature
func (h *Handler) Signature(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Signature())
}

// POST /v1/recognize
//
// Accepts either a multipart form with one or more files in the "images"
// field or a single encoded image as the raw request body.
func (h *Handler) Recognize(c *gin.Context) {

	id := c.GetString(requestIDHeader)

	images, err := readImages(c)

	if err != nil {
		h.fail(c, id, err)
		return
	}

	results := make([]Result, 0, len(images))

	for i, img := range images {
		res, err := h.svc.Recognize(c.Request.Context(), img)

		if err != nil {
			h.fail(c, id, fmt.Errorf("image %d: %w", i, err))
			return
		}

		results = append(results, res)
	}

	h.metrics.request("http", "ok")
	h.log.Debugw("recognized plates", "request_id", id, "count", len(results))

	c.JSON(http.StatusOK, recognizeResponse{
		RequestID: id,
		Results:   results,
	})
}

// fail writes an error response, 400 for bad input and 500 otherwise
func (h *Handler) fail(c *gin.Context, id string, err error) {

	status := http.StatusInternalServerError

	if IsClientError(err) {
		status = http.StatusBadRequest
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}

	h.metrics.request("http", strconv.Itoa(status))

	if status >= http.StatusInternalServerError {
		h.log.Errorw("recognition failed", "request_id", id, "error", err)
	} else {
		h.log.Infow("rejected request", "request_id", id, "error", err)
	}

	c.JSON(status, errorResponse{RequestID: id, Error: err.Error()})
}

// readImages returns the uploaded images of a multipart request or the raw
// body otherwise.  Any other content type, form encoding included, is taken
// as the image itself.
func readImages(c *gin.Context) ([][]byte, error) {

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		form, err := c.MultipartForm()

		if err != nil {
			return nil, fmt.Errorf("%w: invalid multipart form: %v", ErrEmptyImage, err)
		}

		files := form.File[imagesField]

		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no files in field %q", ErrEmptyImage, imagesField)
		}

		images := make([][]byte, len(files))

		for i, fh := range files {
			if images[i], err = readPart(fh); err != nil {
				return nil, err
			}
		}

		return images, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImageBytes+1))

	if err != nil {
		return nil, fmt.Errorf("error reading request body: %w", err)
	}

	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrImageTooLarge, maxImageBytes)
	}

	return [][]byte{data}, nil
}

// readPart reads one uploaded file
func readPart(fh *multipart.FileHeader) ([]byte, error) {

	if fh.Size > maxImageBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrImageTooLarge, fh.Filename, maxImageBytes)
	}

	f, err := fh.Open()

	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", fh.Filename, err)
	}

	defer f.Close()

	return io.ReadAll(f)
}

// Server runs the HTTP handler until its context ends
type Server struct {
	srv *http.Server
	log *zap.SugaredLogger
}

// NewServer returns an HTTP server on addr
func NewServer(addr string, handler http.Handler, log *zap.SugaredLogger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {

	errCh := make(chan error, 1)

	go func() {
		s.log.Infof("starting http server on %s", s.srv.Addr)

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.srv.Shutdown(shutdown)
	s.log.Infof("http server stop result: %v", err)

	return err
}
