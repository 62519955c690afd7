// Package document parses YAML scenario streams into validated documents.
//
// A stream is a sequence of YAML documents: an optional header (case or
// template) at position zero followed by steps. The parser installs the
// DSL's tag table — variable references, secrets, gated expressions, binary
// and file literals, content operations — plus every instruction tag
// registered by an extension bundle, and hands each decoded document to the
// model for structural validation.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/model"
	"github.com/vk/scenargo/internal/registry"
)

// Parser turns YAML scenario streams into validated documents. It is safe
// for sequential reuse across files; the compiled model is shared.
type Parser struct {
	builder   *model.Builder
	allowExpr bool
	tags      map[string]*extension.TagType
}

// New builds a parser over a registry snapshot. Expression tags stay
// disabled unless allowExpr is set; a document using !expr without it is a
// schema error, not a silent no-op.
func New(reg *registry.Registry, allowExpr bool) *Parser {
	tags := make(map[string]*extension.TagType)
	for _, tag := range reg.Instructions() {
		tags[tag.Name] = tag
	}
	return &Parser{
		builder:   model.NewBuilder(reg),
		allowExpr: allowExpr,
		tags:      tags,
	}
}

// Model returns the compiled document model.
func (p *Parser) Model() (*model.Model, error) {
	return p.builder.Model()
}

// ParseFile reads and parses one scenario file.
func (p *Parser) ParseFile(path string) ([]model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		schemaErr := dslerr.NewSchema("cannot open scenario file: %v", err)
		schemaErr.Loc = dslerr.At(path, 0, 0)
		return nil, schemaErr
	}
	defer f.Close()
	return p.ParseStream(f, path)
}

// ParseStream decodes every document of a YAML stream. The filename is used
// for error locations and as the base directory for file-reading tags.
func (p *Parser) ParseStream(r io.Reader, filename string) ([]model.Document, error) {
	m, err := p.builder.Model()
	if err != nil {
		return nil, err
	}

	walker := &nodeWalker{
		parser: p,
		model:  m,
		file:   filename,
		dir:    baseDir(filename),
	}

	var docs []model.Document
	decoder := yaml.NewDecoder(r)
	for {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			schemaErr := dslerr.NewSchema("malformed YAML: %v", err)
			schemaErr.Loc = dslerr.At(filename, 0, 0)
			return nil, schemaErr
		}
		// yaml.v3 represents an explicit empty document as a document
		// node wrapping a single !!null scalar, never as a zero node.
		if node.Kind == 0 || isEmptyDocument(&node) {
			continue
		}

		raw, err := walker.decode(&node)
		if err != nil {
			return nil, locate(err, filename, &node)
		}
		doc, err := m.BuildDocument(raw)
		if err != nil {
			return nil, locate(err, filename, &node)
		}

		switch doc.(type) {
		case *model.Case, *model.Template:
			if len(docs) != 0 {
				schemaErr := dslerr.NewSchema("header must be at first position")
				schemaErr.Loc = dslerr.At(filename, node.Line, node.Column)
				return nil, schemaErr
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isEmptyDocument(node *yaml.Node) bool {
	return node.Kind == yaml.DocumentNode &&
		len(node.Content) == 1 &&
		node.Content[0].Kind == yaml.ScalarNode &&
		node.Content[0].Tag == "!!null"
}

func baseDir(filename string) string {
	if filename == "" {
		return "."
	}
	return filepath.Dir(filename)
}

// locate fills in the source position on schema errors raised below the
// node walker, which has no access to the document coordinates.
func locate(err error, filename string, node *yaml.Node) error {
	var schemaErr *dslerr.SchemaError
	if !errors.As(err, &schemaErr) {
		return err
	}
	if schemaErr.Loc.File == "" {
		schemaErr.Loc.File = filename
	}
	if schemaErr.Loc.Line == 0 {
		schemaErr.Loc.Line = node.Line
		schemaErr.Loc.Column = node.Column
	}
	return err
}

// tagError builds a schema error anchored at a node.
func tagError(node *yaml.Node, format string, args ...any) *dslerr.SchemaError {
	schemaErr := dslerr.NewSchema(format, args...)
	schemaErr.Loc = dslerr.At("", node.Line, node.Column)
	schemaErr.Element = fmt.Sprintf("%s %s", node.Tag, node.Value)
	return schemaErr
}
