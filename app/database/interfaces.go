package database

type MessageRepository interface {
	GetVisibleMessages(targetID int, limit int) ([]Message, error)
	GetMessageCount(targetID int) (int, error)
	GetMessageStats(targetID int) (int, int, int, error)
	GetAllMessages(targetID int) ([]Message, error)

	// InsertMessages archives messages, skipping identities already stored
	// for the target. Returns the number of rows written.
	InsertMessages(targetID int, messages []Message) (int, error)
	UpdateMessageFilterStatus(messageID int64, isFiltered bool, reason string) error
}
