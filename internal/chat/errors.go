package chat

import "errors"

// Per-intent failure classes. The router boundary maps these to targeted
// error events; they never close the connection.
var (
	// ErrEmptyContent rejects a message whose content is empty after
	// trimming (validation error).
	ErrEmptyContent = errors.New("chat: message content is empty")

	// ErrNotAMember rejects a channel action by a non-member, checked
	// against the durable record at action time (authorization error).
	ErrNotAMember = errors.New("chat: not a member of this channel")

	// ErrRecipientNotFound rejects a direct message to an unknown user.
	ErrRecipientNotFound = errors.New("chat: recipient not found")
)
