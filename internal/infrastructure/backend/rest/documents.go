package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

func (c *Client) ListDocuments(ctx context.Context, cred domain.Credentials) ([]domain.Document, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{
		operation: "list_documents",
		method:    http.MethodGet,
		path:      "/api/documents",
		cred:      cred,
		out:       &raw,
	}); err != nil {
		return nil, err
	}
	docs, err := decodeDocuments(raw)
	if err != nil {
		return nil, toDomainError("list_documents", &decodeError{operation: "list_documents", err: err}, nil)
	}
	return docs, nil
}

func (c *Client) UploadDocument(ctx context.Context, cred domain.Credentials, req domain.UploadRequest) (*domain.Document, error) {
	filename := req.File.Filename()
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload_document", errors.New("file name is empty"))
	}
	content, err := req.File.Reader()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload_document", err)
	}
	defer content.Close()

	form := &uploadForm{filename: filename, content: content}
	if req.Title != "" {
		form.fields = append(form.fields, [2]string{"title", req.Title})
	}
	if req.Visibility != "" {
		form.fields = append(form.fields, [2]string{"visibility", string(req.Visibility)})
	}
	if req.Protection != "" {
		form.fields = append(form.fields, [2]string{"protectionType", string(req.Protection)})
	}
	if req.Protection == domain.ProtectionPassword {
		form.fields = append(form.fields, [2]string{"password", req.Password})
	}

	var raw json.RawMessage
	if err := c.do(ctx, request{
		operation: "upload_document",
		method:    http.MethodPost,
		path:      "/api/documents/upload",
		cred:      cred,
		form:      form,
		out:       &raw,
	}); err != nil {
		return nil, err
	}
	doc, err := decodeUploaded(raw, req)
	if err != nil {
		return nil, toDomainError("upload_document", &decodeError{operation: "upload_document", err: err}, nil)
	}
	return doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, cred domain.Credentials, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete_document", errors.New("document id is empty"))
	}
	return c.do(ctx, request{
		operation: "delete_document",
		method:    http.MethodDelete,
		path:      "/api/documents/" + url.PathEscape(id),
		cred:      cred,
	})
}

// SetDocumentActive sends the desired value of the flag.
func (c *Client) SetDocumentActive(ctx context.Context, cred domain.Credentials, id string, active bool) error {
	if strings.TrimSpace(id) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "toggle_document_active", errors.New("document id is empty"))
	}
	return c.do(ctx, request{
		operation: "toggle_document_active",
		method:    http.MethodPatch,
		path:      "/api/documents/" + url.PathEscape(id) + "/status",
		cred:      cred,
		payload:   map[string]bool{"isActive": active},
	})
}
