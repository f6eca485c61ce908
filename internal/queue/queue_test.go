package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseQueueWeights(t *testing.T) {
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, parseQueueWeights("critical=6, default=3,low"))
	assert.Equal(t, map[string]int{"default": 1}, parseQueueWeights("default=zero"))
	assert.Empty(t, parseQueueWeights(" , "))
}

func TestAsynqOptions(t *testing.T) {
	assert.Nil(t, asynqOptions(nil))
	opts := asynqOptions([]EnqueueOption{{Queue: "maintenance", MaxRetry: 3, UniqueTTL: time.Hour, Timeout: time.Minute}})
	assert.Len(t, opts, 4)
}

func TestRedisURLRequired(t *testing.T) {
	_, err := NewAsynqClient("")
	assert.Error(t, err)
	_, err = NewAsynqClient("http://not-redis")
	assert.Error(t, err)
}
