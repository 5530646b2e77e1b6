package domain

import "strings"

const progressChannelPrefix = "uploadProgress:"

type ProgressEvent struct {
	DocumentID string `json:"document_id"`
	Progress   int    `json:"progress"`
	Message    string `json:"message"`
}

// ClampProgress keeps a reported percentage inside 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func ProgressChannel(documentID string) string {
	return progressChannelPrefix + documentID
}

// DocumentIDFromChannel is the inverse of ProgressChannel.
func DocumentIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, progressChannelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, progressChannelPrefix)
	return id, id != ""
}
