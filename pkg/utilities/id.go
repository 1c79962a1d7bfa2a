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

// NewRecordID returns a KSUID string. Used for OTP and refresh token records,
// which are never exposed to clients and only need to be unique and sortable.
func NewRecordID() string {
	return ksuid.New().String()
}

// NewAccountID returns a snowflake ID string for a new account. The node is
// taken once from SNOWFLAKE_NODE (default 1). If the node cannot be created
// a KSUID is returned instead so an ID is always produced.
func NewAccountID() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			nodeID = v
		}
		n, err := snowflake.NewNode(nodeID)
		if err == nil {
			node = n
		}
	})
	if node == nil {
		return NewRecordID()
	}
	return node.Generate().String()
}
