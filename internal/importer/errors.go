package importer

import "errors"

var (
	// ErrDecisionSet indicates a task's decision was assigned twice.
	ErrDecisionSet = errors.New("decision already set")

	// ErrNoItems indicates an import unit contained no readable items.
	ErrNoItems = errors.New("no importable items")

	// ErrTransferFailed indicates the file placement operation failed.
	ErrTransferFailed = errors.New("failed to transfer file")

	// ErrPathTraversal indicates a destination would escape the library root.
	ErrPathTraversal = errors.New("path traversal detected")
)
