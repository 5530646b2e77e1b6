package preflight

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ledongthuc/pdf"
	"github.com/oapi-codegen/runtime/types"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const DefaultMaxBytes int64 = 25 << 20

// Extensions accepted by the upload endpoint.
var Extensions = []string{".pdf", ".txt", ".doc", ".docx"}

// Checker rejects files the backend would refuse before any bytes are sent.
type Checker struct {
	maxBytes int64
}

var _ ports.FilePreflight = (*Checker)(nil)

func NewChecker(maxBytes int64) *Checker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Checker{maxBytes: maxBytes}
}

func (c *Checker) Check(file types.File) error {
	name := file.Filename()
	ext := strings.ToLower(filepath.Ext(name))
	if !supported(ext) {
		return invalid(fmt.Errorf("only %s files can be uploaded", strings.Join(Extensions, ", ")))
	}

	size := file.FileSize()
	if size == 0 {
		return invalid(errors.New("the selected file is empty"))
	}
	if size > c.maxBytes {
		return invalid(fmt.Errorf("the file is %s, the limit is %s", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(c.maxBytes))))
	}

	data, err := file.Bytes()
	if err != nil {
		return invalid(fmt.Errorf("read %s failed", name))
	}

	switch ext {
	case ".pdf":
		pages, err := PageCount(data)
		if err != nil {
			return invalid(errors.New("the file is not a readable PDF"))
		}
		if pages == 0 {
			return invalid(errors.New("the PDF has no pages"))
		}
	case ".txt":
		if !utf8.Valid(data) {
			return invalid(errors.New("text files must be UTF-8"))
		}
	}
	return nil
}

// PageCount parses the PDF cross-reference table and returns the number of
// pages.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func supported(ext string) bool {
	for _, allowed := range Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func invalid(err error) error {
	return domain.WrapError(domain.ErrInvalidInput, "upload preflight", err)
}
