package domain

import "errors"

var (
	// ErrValidation marks caller input that can never succeed without change.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup miss on an identifier the caller supplied.
	ErrNotFound = errors.New("not found")
	// ErrTemplateNotFound marks an unknown template id.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrChannelNotSupported marks a render request for a channel outside the
	// template's declared channel set.
	ErrChannelNotSupported = errors.New("channel not supported by template")
	// ErrMissingVariables marks a render request lacking declared variables.
	ErrMissingVariables = errors.New("missing template variables")
)
