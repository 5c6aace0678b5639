package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmptyPayload is returned when there is no markup to parse.
var ErrEmptyPayload = errors.New("empty payload")

// DocumentLoader turns raw markup into a queryable document and releases it
// once the caller is done.
type DocumentLoader interface {
	Load(payload []byte) (*goquery.Document, error)
	Release(doc *goquery.Document)
}

// GoqueryLoader is the default DocumentLoader.
type GoqueryLoader struct{}

func (GoqueryLoader) Load(payload []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrEmptyPayload
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Release drops the parsed tree so it can be collected even if the
// document value outlives the extraction.
func (GoqueryLoader) Release(doc *goquery.Document) {
	if doc == nil || doc.Selection == nil {
		return
	}
	doc.Selection.Nodes = nil
}

// withDocument loads payload, runs fn and releases the document on every
// exit path, including a panic inside fn.
func withDocument(loader DocumentLoader, payload []byte, fn func(doc *goquery.Document) error) error {
	doc, err := loader.Load(payload)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("parse document: %w", ErrEmptyPayload)
	}
	defer loader.Release(doc)
	return fn(doc)
}
