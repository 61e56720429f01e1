package components

import (
	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/interfaces"
)

// Notifications emitted by the request editor.
type (
	// URLChangedMsg is sent when the editor URL is edited.
	URLChangedMsg struct {
		URL string
	}

	// ConnectingChangedMsg is sent when a handshake starts or ends.
	ConnectingChangedMsg struct {
		Connecting bool
	}

	// ConnectedChangedMsg is sent when the connection opens or closes.
	ConnectedChangedMsg struct {
		Connected bool
	}

	// MessagesChangedMsg carries the editor's full message log.
	MessagesChangedMsg struct {
		Messages []*core.WebSocketMessage
	}
)

// MessagesClearedMsg is sent by the message view when the user clears the log.
type MessagesClearedMsg struct{}

// URLSelectedMsg is sent by the history list when an entry is chosen.
type URLSelectedMsg struct {
	URL string
}

// CopyMsg is sent when content should be copied to the clipboard.
type CopyMsg struct {
	Content string
}

// HistoryRecordedMsg is sent after a connected URL is written to history.
type HistoryRecordedMsg struct {
	Entry history.Entry
	Err   error
}

// connectionEventMsg carries one transport event into the editor.
type connectionEventMsg struct {
	connectionID string
	event        interfaces.ConnectionEvent
	closed       bool
}

// connectResultMsg reports the outcome of a handshake.
type connectResultMsg struct {
	connectionID string
	err          error
}

// historyLoadedMsg carries a history query result.
type historyLoadedMsg struct {
	search  string
	entries []history.Entry
	err     error
}

// historyDeletedMsg reports a deleted history entry.
type historyDeletedMsg struct {
	id  string
	err error
}
