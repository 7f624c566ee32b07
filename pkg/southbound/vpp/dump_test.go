package vpp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.fd.io/govpp/binapi/lcp"
)

func TestEndOfCursorDump(t *testing.T) {
	reply := &lcp.LcpItfPairGetReply{}

	end := fmt.Errorf("received unexpected message (ID %d): %s", 1234, reply.GetMessageName())
	assert.True(t, endOfCursorDump(end, reply))

	assert.False(t, endOfCursorDump(errors.New("reply timeout"), reply))
	assert.False(t, endOfCursorDump(nil, reply))
}

func TestTrimName(t *testing.T) {
	assert.Equal(t, "be0", trimName("be0\x00\x00\x00"))
	assert.Equal(t, "dataplane", trimName("dataplane"))
}
