package domain

import (
	"strings"
	"time"

	"github.com/oapi-codegen/runtime/types"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ParseDocumentStatus maps a backend status onto the known set. Anything the
// client does not recognise is shown as pending.
func ParseDocumentStatus(raw string) DocumentStatus {
	switch DocumentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusProcessing:
		return StatusProcessing
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityProtected:
		return true
	default:
		return false
	}
}

type ProtectionType string

const (
	ProtectionNone     ProtectionType = "none"
	ProtectionOTP      ProtectionType = "otp"
	ProtectionPassword ProtectionType = "password"
)

func (p ProtectionType) Valid() bool {
	switch p {
	case ProtectionNone, ProtectionOTP, ProtectionPassword:
		return true
	default:
		return false
	}
}

type Document struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ShareToken string         `json:"share_token,omitempty"`
	Visibility Visibility     `json:"visibility,omitempty"`
	Active     bool           `json:"active"`
}

// UploadRequest is the multipart payload of a document upload. File keeps the
// selected bytes so a failed submit can be retried without reselecting.
type UploadRequest struct {
	File       types.File
	Title      string
	Visibility Visibility
	Protection ProtectionType
	Password   string
}

// Credentials carry the bearer used for one data-access call. A zero value
// means an anonymous call.
type Credentials struct {
	Bearer string
}

func (c Credentials) Anonymous() bool {
	return strings.TrimSpace(c.Bearer) == ""
}
