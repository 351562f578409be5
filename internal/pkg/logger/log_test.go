package logger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain() {
	for {
		select {
		case <-Messages:
		default:
			return
		}
	}
}

func TestLoggerWritesJSONWithLevel(t *testing.T) {
	drain()
	log := GetLogger()
	log.Info("hello", Warning)

	data := <-Messages
	var entry struct {
		Msg   string `json:"msg"`
		Level int    `json:"level"`
	}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry.Msg)
	assert.Equal(t, WarningLvl, entry.Level)
}

func TestLoggerNeverBlocks(t *testing.T) {
	drain()
	log := GetLogger()
	before := Dropped()
	for i := 0; i < cap(Messages)+10; i++ {
		log.Info("flood", Debug)
	}
	assert.GreaterOrEqual(t, Dropped()-before, uint64(10))
	drain()
}
