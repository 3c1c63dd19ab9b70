package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewID returns a record ID. The snowflake node is created once per process
// from SNOWFLAKE_NODE (default 1); if the node cannot be built, a KSUID is
// returned instead so callers always get a unique value.
func NewID() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			nodeID = v
		}
		n, err := snowflake.NewNode(nodeID)
		if err != nil {
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}

// NewRequestID generates an identifier for an inbound request.
func NewRequestID() string {
	return NewKSUID()
}
