package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound: no completed embedding record matches the request,
	// or a semantic query was issued against a text-only library.
	ErrModelNotFound = errors.New("embedding model not found")
	// ErrUnsupportedVectorStore: the embedding record names a vector store
	// this build has no driver for. Raised before any network call.
	ErrUnsupportedVectorStore = errors.New("unsupported vector store")
	ErrLibraryNotFound        = errors.New("library not found")
	ErrSessionNotFound        = errors.New("query session not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTemporary              = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
