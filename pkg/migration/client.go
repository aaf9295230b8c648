// Package migration provides a client for the external code migration backend.
package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"cloudshift-go/internal/config"
	"cloudshift-go/pkg/log"
)

// Result 是迁移后端成功响应的结构。
type Result struct {
	Workspace string `json:"workspace"`
	Report    string `json:"report"`
}

// BackendError 表示迁移后端返回的非 2xx 响应。
// Detail 来自响应体中的 {"detail": ...} 字段，可能为空。
type BackendError struct {
	Status int
	Reason string
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("Backend error: %d %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("Backend error: %d %s", e.Status, e.Reason)
}

// Client defines the interface for the migration backend client.
// 每次用户动作恰好发出一次请求：不重试、不设超时，失败原样上抛。
type Client interface {
	// Health 探测后端可用性，任何 2xx 响应视为可用。
	Health(ctx context.Context) bool
	// MigrateFile 以 multipart 方式提交压缩包（文件模式）。
	MigrateFile(ctx context.Context, fileName string, file io.Reader, includeSuggestions bool) (*Result, error)
	// MigrateURL 以 JSON 方式提交仓库地址（URL 模式）。
	MigrateURL(ctx context.Context, sourceURL string, includeSuggestions bool) (*Result, error)
}

type httpClient struct {
	cfg    config.MigrationConfig
	client *http.Client
}

// NewClient creates a new migration backend client.
func NewClient(cfg config.MigrationConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Health 对后端根路径发起 GET，任何 2xx 状态码代表可用。
func (c *httpClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnf("[MigrationClient] 后端健康检查失败: %v", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type urlRequest struct {
	SourceURL          string `json:"source_url"`
	IncludeSuggestions bool   `json:"include_suggestions"`
}

// MigrateURL 调用 POST /migrate/url。
// 注意：不在本地校验 URL 的合法性，校验交给后端。
func (c *httpClient) MigrateURL(ctx context.Context, sourceURL string, includeSuggestions bool) (*Result, error) {
	reqBody := urlRequest{
		SourceURL:          sourceURL,
		IncludeSuggestions: includeSuggestions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal migrate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/migrate/url", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// MigrateFile 调用 POST /migrate/file，表单字段为 file 与 include_suggestions。
func (c *httpClient) MigrateFile(ctx context.Context, fileName string, file io.Reader, includeSuggestions bool) (*Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file into form: %w", err)
	}
	// 后端约定该字段为字符串 "true"/"false"
	if err := writer.WriteField("include_suggestions", strconv.FormatBool(includeSuggestions)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/migrate/file", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// do 执行请求并把响应规范化为 Result 或 BackendError。
func (c *httpClient) do(req *http.Request) (*Result, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call migration backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		backendErr := &BackendError{
			Status: resp.StatusCode,
			Reason: http.StatusText(resp.StatusCode),
		}
		// 尝试解析结构化的 detail，解析失败则保留状态行
		var errBody struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Detail != "" {
			backendErr.Detail = errBody.Detail
		}
		return nil, backendErr
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode migration response: %w", err)
	}
	return &result, nil
}
