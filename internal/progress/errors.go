package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind shared by every "missing" failure.
	ErrNotFound = errors.New("not found")

	ErrProgressNotFound = fmt.Errorf("progress %w", ErrNotFound)
	ErrInvalidIndex     = fmt.Errorf("milestone %w: invalid index", ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("template %w", ErrNotFound)

	ErrLocked           = errors.New("milestone is locked: complete the previous milestone first")
	ErrApprovalRequired = errors.New("milestone requires teacher approval of its document before completion")
	ErrNoDocument       = errors.New("milestone has no uploaded document to approve")
	ErrInvalidTemplate  = errors.New("template has no milestones")

	// ErrUnchanged is returned by a mutation that decided not to write.
	// Stores treat it as success and keep the current document.
	ErrUnchanged = errors.New("progress unchanged")
)
