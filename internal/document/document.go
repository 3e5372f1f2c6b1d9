// Package document describes an uploaded input file and detects its type.
package document

import (
	"archive/zip"
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// Document is an uploaded file held in memory.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
}

// Empty reports whether the document carries no bytes.
func (d Document) Empty() bool {
	return len(d.Data) == 0
}

// Supported reports whether the document is a PDF or DOCX resume.
func (d Document) Supported() bool {
	switch d.Type() {
	case MimePDF, MimeDOCX:
		return true
	}
	return false
}

// Type returns the normalized MIME type of the document. Declared types are
// trusted except for generic ones, which are sniffed from content and name.
func (d Document) Type() string {
	return NormalizeMimeType(d.MimeType, d.Name, d.Data)
}

// NormalizeMimeType resolves the effective MIME type of data.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		if len(data) > 0 {
			clean = strings.Split(http.DetectContentType(data), ";")[0]
		}
		if clean == "" || clean == "application/octet-stream" {
			clean = byExtension(fileName, clean)
		}
	}
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}
	return byExtension(fileName, clean)
}

func byExtension(fileName, fallback string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	default:
		return fallback
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		switch name {
		case "word/document.xml":
			return MimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		case "ppt/presentation.xml":
			return mimePPTX
		}
	}
	return ""
}
