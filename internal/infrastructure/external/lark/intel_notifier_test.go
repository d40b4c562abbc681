package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

type mockSender struct {
	sendFunc func(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
	calls    int
}

func (m *mockSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	m.calls++
	if m.sendFunc != nil {
		return m.sendFunc(ctx, receiveIDType, receiveID, msgType, content)
	}
	return "om_1", nil
}

func approvedIntel() *entity.IntelRecord {
	return &entity.IntelRecord{
		ID:             "i1",
		ClaimID:        "c1",
		CarrierCode:    "harborline",
		Title:          "Claim approved by carrier",
		Summary:        `Carrier "approved" the claim`,
		Priority:       entity.PriorityHigh,
		PreviousStatus: "pending",
		NewStatus:      "approved",
	}
}

func TestIntelNotifier_PostsToChat(t *testing.T) {
	sender := &mockSender{}
	var gotType, gotID, gotMsgType, gotContent string
	sender.sendFunc = func(_ context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
		gotType, gotID, gotMsgType, gotContent = receiveIDType, receiveID, msgType, content
		return "om_1", nil
	}

	n := NewIntelNotifier(sender, "oc_claims", "", zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), approvedIntel()))

	assert.Equal(t, "chat_id", gotType)
	assert.Equal(t, "oc_claims", gotID)
	assert.Equal(t, "text", gotMsgType)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotContent), &body))
	assert.Contains(t, body["text"], "[HIGH] Claim approved by carrier")
	assert.Contains(t, body["text"], "Status: pending -> approved")
	assert.Contains(t, body["text"], `Carrier "approved" the claim`)
}

func TestIntelNotifier_PriorityFilter(t *testing.T) {
	medium := approvedIntel()
	medium.Priority = entity.PriorityMedium

	sender := &mockSender{}
	require.NoError(t, NewIntelNotifier(sender, "oc_claims", entity.PriorityHigh, zap.NewNop()).Notify(context.Background(), medium))
	assert.Equal(t, 0, sender.calls)

	require.NoError(t, NewIntelNotifier(sender, "oc_claims", entity.PriorityMedium, zap.NewNop()).Notify(context.Background(), medium))
	assert.Equal(t, 1, sender.calls)
}

func TestIntelNotifier_Errors(t *testing.T) {
	sender := &mockSender{sendFunc: func(context.Context, string, string, string, string) (string, error) {
		return "", errors.New("API error: code=230002")
	}}

	err := NewIntelNotifier(sender, "oc_claims", "", zap.NewNop()).Notify(context.Background(), approvedIntel())
	assert.ErrorContains(t, err, "code=230002")

	err = NewIntelNotifier(&mockSender{}, "", "", zap.NewNop()).Notify(context.Background(), approvedIntel())
	assert.ErrorContains(t, err, "chat id")

	err = NewIntelNotifier(&mockSender{}, "oc_claims", "", zap.NewNop()).Notify(context.Background(), nil)
	assert.Error(t, err)
}

func TestFormatIntel_OmitsEmptyParts(t *testing.T) {
	text := FormatIntel(&entity.IntelRecord{ClaimID: "c9", CarrierCode: "mock", Title: "Note", Priority: "medium"})
	assert.Equal(t, "[MEDIUM] Note\nClaim: c9 (mock)", text)
}
