package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"registri/internal/books"
	"registri/internal/core"
)

const (
	basePath       = "/api/contabilita"
	maxErrorBody   = 4 << 10
	defaultTimeout = 15 * time.Second
)

// Client talks to the bookkeeping REST backend. The tenant id and bearer
// token of each call's scope are sent as headers and never logged.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ books.Books = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q: must be http or https", u.Scheme)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: u.String() + basePath,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListAccounts(ctx context.Context, scope core.Scope) ([]core.Account, error) {
	var dtos []accountDTO
	if err := c.do(ctx, scope, "list accounts", http.MethodGet, "/registri", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(dtos))
	for _, d := range dtos {
		a, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, scope core.Scope, a core.Account, openedOn core.Date) (string, error) {
	req := createAccountDTO{
		Name:           a.Name,
		Type:           string(a.Type),
		Code:           a.Code,
		OpeningBalance: a.OpeningBalance.Decimal(),
		OpenedOn:       openedOn.String(),
	}
	var res createdDTO
	if err := c.do(ctx, scope, "create account", http.MethodPost, "/registri", req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) ListCategories(ctx context.Context, scope core.Scope) ([]core.Category, error) {
	var res categoriesDTO
	if err := c.do(ctx, scope, "list categories", http.MethodGet, "/categorie", nil, &res); err != nil {
		return nil, err
	}
	out := make([]core.Category, len(res.Categories))
	for i, d := range res.Categories {
		out[i] = core.Category{ID: d.ID, Name: d.Name, ParentID: deref(d.ParentID)}
	}
	return out, nil
}

func (c *Client) ListMovements(ctx context.Context, scope core.Scope, accountID string) (core.AccountLedger, error) {
	var res accountLedgerDTO
	path := "/movimenti/conto/" + url.PathEscape(accountID)
	if err := c.do(ctx, scope, "list movements", http.MethodGet, path, nil, &res); err != nil {
		return core.AccountLedger{}, err
	}
	return res.toCore(accountID)
}

func (c *Client) CreateMovement(ctx context.Context, scope core.Scope, p core.MovementPayload) (string, error) {
	var res createdDTO
	if err := c.do(ctx, scope, "create movement", http.MethodPost, "/movimenti", movementRequest(p), &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) UpdateMovement(ctx context.Context, scope core.Scope, id string, p core.MovementPayload) error {
	err := c.do(ctx, scope, "update movement", http.MethodPut, "/movimenti/"+url.PathEscape(id), movementRequest(p), nil)
	return lockedOn403(err, id, "update")
}

func (c *Client) DeleteMovement(ctx context.Context, scope core.Scope, id string) error {
	err := c.do(ctx, scope, "delete movement", http.MethodDelete, "/movimenti/"+url.PathEscape(id), nil, nil)
	return lockedOn403(err, id, "delete")
}

// CreateTransfer posts both legs to the giroconto endpoint. Leg ids present
// in the response are returned even when the status reports a failure.
func (c *Client) CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error) {
	req := transferRequestDTO{
		SourceID:      outflow.AccountID,
		DestinationID: inflow.AccountID,
		Date:          outflow.Date.String(),
		Amount:        outflow.Amount.Decimal(),
		Note:          outflow.Note,
		LinkID:        outflow.TransferLink,
	}
	var res transferResponseDTO
	err := c.do(ctx, scope, "create transfer", http.MethodPost, "/movimenti/giroconto", req, &res)
	return core.TransferReceipt{OutflowID: res.OutflowID, InflowID: res.InflowID}, err
}

func (c *Client) ListAttachments(ctx context.Context, scope core.Scope, movementID string) ([]core.Attachment, error) {
	var dtos []attachmentDTO
	path := "/movimenti/" + url.PathEscape(movementID) + "/allegati"
	if err := c.do(ctx, scope, "list attachments", http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]core.Attachment, len(dtos))
	for i, d := range dtos {
		out[i] = d.toCore(movementID)
	}
	return out, nil
}

func (c *Client) UploadAttachment(ctx context.Context, scope core.Scope, movementID string, file core.AttachmentUpload) (core.Attachment, error) {
	if err := file.Validate(); err != nil {
		return core.Attachment{}, err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": file.FileName}))
	h.Set("Content-Type", file.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return core.Attachment{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return core.Attachment{}, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return core.Attachment{}, fmt.Errorf("close multipart writer: %w", err)
	}

	path := "/movimenti/" + url.PathEscape(movementID) + "/allegati"
	resp, err := c.send(ctx, scope, "upload attachment", http.MethodPost, path, mw.FormDataContentType(), &body)
	if err != nil {
		return core.Attachment{}, err
	}
	defer resp.Body.Close()

	var res attachmentDTO
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return core.Attachment{}, &core.TransportError{Operation: "upload attachment", Err: fmt.Errorf("decode response: %w", err)}
	}
	a := res.toCore(movementID)
	a.ContentType = file.ContentType
	if a.FileName == "" {
		a.FileName = file.FileName
	}
	return a, nil
}

func (c *Client) DownloadAttachment(ctx context.Context, scope core.Scope, attachmentID string) (core.Attachment, []byte, error) {
	path := "/allegati/" + url.PathEscape(attachmentID) + "/download"
	resp, err := c.send(ctx, scope, "download attachment", http.MethodGet, path, "", nil)
	if err != nil {
		return core.Attachment{}, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Attachment{}, nil, &core.TransportError{Operation: "download attachment", Err: err}
	}
	meta := core.Attachment{
		ID:          attachmentID,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(data)),
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		meta.FileName = params["filename"]
	}
	return meta, data, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, scope core.Scope, attachmentID string) error {
	return c.do(ctx, scope, "delete attachment", http.MethodDelete, "/allegati/"+url.PathEscape(attachmentID), nil, nil)
}

// do sends a JSON request and decodes a JSON response into out. On a
// failure status the body is still decoded into out when possible.
func (c *Client) do(ctx context.Context, scope core.Scope, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, scope, op, method, path, contentType, body)
	if err != nil {
		var fe *failure
		if errors.As(err, &fe) && out != nil && len(fe.body) > 0 {
			_ = json.Unmarshal(fe.body, out)
		}
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.TransportError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// failure carries a non-2xx response body alongside the mapped error.
type failure struct {
	err  error
	body []byte
}

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

func (c *Client) send(ctx context.Context, scope core.Scope, op, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if scope.Token != "" {
		req.Header.Set("Authorization", "Bearer "+scope.Token)
	}
	if scope.TenantID != "" {
		req.Header.Set("X-Ente-Id", scope.TenantID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnContext(ctx, "Backend request failed",
			"operation", op, "method", method, "path", path, "error", err)
		return nil, &core.TransportError{Operation: op, Err: err}
	}

	c.logger.DebugContext(ctx, "Backend request completed",
		"operation", op,
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"tenant_id", scope.TenantID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &failure{err: statusError(op, resp.StatusCode, raw), body: raw}
}

// statusError maps a failure status to the core error taxonomy.
func statusError(op string, status int, body []byte) error {
	detail := errorDetail(body)
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, detail, core.ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &core.ValidationError{Message: detail}
	default:
		return &core.TransportError{Operation: op, StatusCode: status, Detail: detail}
	}
}

func errorDetail(body []byte) string {
	var e errorDTO
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(e.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}

// lockedOn403 turns a forbidden edit or delete into a LockedRecordError.
func lockedOn403(err error, id, op string) error {
	var te *core.TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusForbidden {
		return &core.LockedRecordError{MovementID: id, Operation: op}
	}
	return err
}
