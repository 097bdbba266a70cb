package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/fluxagent/internal/tlsutil"
	"github.com/BaSui01/fluxagent/types"
	"go.uber.org/zap"
)

// HTTPConfig configures the workspace file API client.
type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
}

// HTTPUploader posts files to {base}/workspaces/{id}/file as multipart form data.
type HTTPUploader struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPUploader creates an uploader. A nil client gets cfg.Timeout.
func NewHTTPUploader(cfg HTTPConfig, client *http.Client, logger *zap.Logger) *HTTPUploader {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "x-openserv-key"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPUploader{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "workspace_uploader")),
	}
}

func (u *HTTPUploader) Name() string { return "http" }

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, req UploadRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if u.cfg.APIKey == "" {
		return types.NewUploadError("workspace API key is not configured", nil)
	}
	if u.cfg.BaseURL == "" {
		return types.NewUploadError("workspace base URL is not configured", nil)
	}

	body, contentType, err := buildMultipart(req)
	if err != nil {
		return types.NewUploadError("encode upload body", err)
	}

	endpoint := fmt.Sprintf("%s/workspaces/%d/file", strings.TrimRight(u.cfg.BaseURL, "/"), req.WorkspaceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return types.NewUploadError("build upload request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set(u.cfg.APIKeyHeader, u.cfg.APIKey)

	start := time.Now()
	resp, err := u.client.Do(httpReq)
	if err != nil {
		u.logger.Warn("workspace upload request failed",
			zap.Int("workspace_id", req.WorkspaceID),
			zap.Error(err),
		)
		return types.NewUploadError("upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return types.NewUploadError(
			fmt.Sprintf("upload rejected: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil,
		).WithHTTPStatus(resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	u.logger.Info("file uploaded to workspace",
		zap.Int("workspace_id", req.WorkspaceID),
		zap.String("path", req.Path),
		zap.Int("bytes", len(req.Data)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func buildMultipart(req UploadRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("path", req.Path); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("skipSummarizer", strconv.FormatBool(req.SkipSummarizer)); err != nil {
		return nil, "", err
	}

	ct := req.ContentType
	if ct == "" {
		ct = http.DetectContentType(req.Data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(req.Path)))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
