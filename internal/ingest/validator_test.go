package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testAutoresponse = `Thank you for reaching out! Did you know that you can now dial *977# to report a power outage or get your last three tokens instantly?`

func TestValidatorAcceptsWellFormedMessage(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	msg, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "my meter is not working",
		Direction:        "to_company",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectNone, reason)
	assert.Equal(t, "chat-1", msg.ChatID)
	assert.Equal(t, "my meter is not working", msg.MessageContent)
}

func TestValidatorRejectsExactAutoresponse(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   testAutoresponse,
		Direction:        "to_client",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectAutoresponse, reason)
}

func TestValidatorSubstringModeMatchesPartialAutoresponse(t *testing.T) {
	v := NewValidator(testAutoresponse, true)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "prefix junk " + testAutoresponse + " suffix junk",
		Direction:        "to_client",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectAutoresponse, reason)
}

func TestValidatorExactModeDoesNotMatchPartial(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "prefix junk " + testAutoresponse,
		Direction:        "to_client",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectNone, reason)
}

func TestValidatorRejectsNonStringContent(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   42,
		Direction:        "to_company",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectInvalid, reason)
}

func TestValidatorRejectsUnknownDirection(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "hello",
		Direction:        "sideways",
		SocialCreateTime: "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, RejectInvalid, reason)
}

func TestValidatorRejectsUnparseableTimestamp(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "hello",
		Direction:        "to_company",
		SocialCreateTime: "not-a-timestamp",
	})

	assert.Equal(t, RejectInvalid, reason)
}

func TestValidatorRejectsEmptyTimestamp(t *testing.T) {
	v := NewValidator(testAutoresponse, false)

	_, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "hello",
		Direction:        "to_company",
		SocialCreateTime: "",
	})

	assert.Equal(t, RejectInvalid, reason)
}

func TestValidatorPreservesAgentInfo(t *testing.T) {
	v := NewValidator(testAutoresponse, false)
	username := "agent007"

	msg, reason := v.Validate("chat-1", RawMessage{
		MessageContent:   "how can I help?",
		Direction:        "to_client",
		SocialCreateTime: "2026-01-02T03:04:05Z",
		AgentUsername:    &username,
	})

	assert.Equal(t, RejectNone, reason)
	if assert.NotNil(t, msg.AgentInfo) {
		assert.Equal(t, username, msg.AgentInfo.Username)
	}
}
