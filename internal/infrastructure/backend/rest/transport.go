package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

const maxErrorBody = 4096

type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	cred      domain.Credentials
	// payload is sent as JSON unless form is set.
	payload any
	form    *uploadForm
	// out receives the decoded body. Nil discards it.
	out any
	// unavailable replaces not-found/forbidden for document-scoped calls.
	unavailable error
	// rejectStatus maps every other error status to ErrRejected, leaving
	// ErrTemporary to transport failures.
	rejectStatus bool
}

func (c *Client) do(ctx context.Context, req request) error {
	run := func(ctx context.Context) error {
		return c.send(ctx, req)
	}

	started := time.Now()
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, req.operation, run, classifyAPIError)
	} else {
		err = run(ctx)
	}
	if c.observer != nil {
		c.observer.ObserveAPICall(req.operation, callStatus(err), time.Since(started))
	}
	if req.rejectStatus {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && !isUnavailableStatus(statusErr.StatusCode) {
			return domain.WrapError(domain.ErrRejected, req.operation, err)
		}
	}
	return toDomainError(req.operation, err, req.unavailable)
}

func isUnavailableStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusNotFound
}

func (c *Client) send(ctx context.Context, call request) error {
	body, contentType, err := encodeBody(call)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, call.operation, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, call.method, c.endpoint(call.path, call.query), reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", call.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !call.cred.Anonymous() {
		req.Header.Set("Authorization", "Bearer "+call.cred.Bearer)
	}

	if c.validator != nil {
		if err := c.validator.Validate(ctx, req, body); err != nil {
			return domain.WrapError(domain.ErrInvalidInput, call.operation, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api %s request: %w", call.operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newHTTPStatusError(call.operation, resp.StatusCode, resp.Status, raw)
	}
	if call.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", call.operation, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("null")
	}
	if err := json.Unmarshal(raw, call.out); err != nil {
		return &decodeError{operation: call.operation, err: err}
	}
	return nil
}

func encodeBody(call request) ([]byte, string, error) {
	if call.form != nil {
		return call.form.encode()
	}
	if call.payload == nil {
		return nil, "", nil
	}
	body, err := json.Marshal(call.payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s request: %w", call.operation, err)
	}
	return body, "application/json", nil
}

type uploadForm struct {
	fields   [][2]string
	filename string
	content  io.Reader
}

func (f *uploadForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": f.filename,
	}))
	header.Set("Content-Type", contentTypeFor(f.filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f.content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	for _, field := range f.fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return strconv.Itoa(statusErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
