package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"example.com/backstage/services/erpgateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherWithoutConnectionString(t *testing.T) {
	p, err := NewPublisher(config.AzureConfig{QueueName: "erp-events"}, "erpgateway")
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	assert.NoError(t, p.Publish(context.Background(), EventContractUpserted, map[string]int{"docNum": 1}))
	assert.NoError(t, p.PublishAll(context.Background(), EventItemChanged, []interface{}{"A1", "A2"}))
	assert.NoError(t, p.Close())
}

func TestNewMessageCarriesEnvelope(t *testing.T) {
	event := NewEvent(EventItemChanged, "erpgateway", map[string]string{"itemCode": "A1"})
	msg, err := newMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.ID, *msg.MessageID)
	assert.Equal(t, EventItemChanged, *msg.Subject)
	assert.Equal(t, "application/json", *msg.ContentType)
	assert.Equal(t, "erpgateway", msg.ApplicationProperties["source"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, EventItemChanged, decoded["type"])
	assert.Equal(t, "A1", decoded["data"].(map[string]interface{})["itemCode"])
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a := NewEvent(EventItemChanged, "erpgateway", nil)
	b := NewEvent(EventItemChanged, "erpgateway", nil)
	assert.NotEqual(t, a.ID, b.ID)
}
