package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

// MessageSender is the slice of the Lark IM API the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

var priorityRank = map[string]int{
	entity.PriorityMedium: 1,
	entity.PriorityHigh:   2,
}

// IntelNotifier implements port.IntelNotifier by posting a text message to a chat
type IntelNotifier struct {
	sender      MessageSender
	chatID      string
	minPriority string
	logger      *zap.Logger
}

// NewIntelNotifier creates a notifier posting to chatID. Records below
// minPriority are skipped; an empty minPriority means "high".
func NewIntelNotifier(sender MessageSender, chatID, minPriority string, logger *zap.Logger) *IntelNotifier {
	if _, ok := priorityRank[minPriority]; !ok {
		minPriority = entity.PriorityHigh
	}
	return &IntelNotifier{
		sender:      sender,
		chatID:      chatID,
		minPriority: minPriority,
		logger:      logger,
	}
}

// Notify implements port.IntelNotifier
func (n *IntelNotifier) Notify(ctx context.Context, record *entity.IntelRecord) error {
	if record == nil {
		return fmt.Errorf("intel record cannot be nil")
	}
	if priorityRank[record.Priority] < priorityRank[n.minPriority] {
		return nil
	}
	if n.chatID == "" {
		return fmt.Errorf("chat id is not configured")
	}

	content, err := json.Marshal(map[string]string{"text": FormatIntel(record)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, "chat_id", n.chatID, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to send intel message: %w", err)
	}

	n.logger.Info("Intel posted to Lark",
		zap.String("claim_id", record.ClaimID),
		zap.String("priority", record.Priority),
		zap.String("message_id", messageID))
	return nil
}

// FormatIntel renders an intel record as plain message text
func FormatIntel(record *entity.IntelRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(record.Priority), record.Title)
	fmt.Fprintf(&b, "Claim: %s (%s)\n", record.ClaimID, record.CarrierCode)
	if record.PreviousStatus != "" || record.NewStatus != "" {
		fmt.Fprintf(&b, "Status: %s -> %s\n", record.PreviousStatus, record.NewStatus)
	}
	if record.Summary != "" {
		b.WriteString(record.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ port.IntelNotifier = (*IntelNotifier)(nil)
