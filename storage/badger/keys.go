package badger

import (
	"fmt"

	"github.com/centauraa/angel-context/core"
)

// Key prefixes for the stored record families.
const (
	chunkPrefix      = "chk"
	chunkConvPrefix  = "chkconv"
	checkpointPrefix = "ingdone"
	schemaKey        = "schema:v1"
)

// makeChunkKey generates the primary key for a chunk. The key pairs the
// owning conversation with the content hash so identical text in two
// conversations stays two records; within one conversation re-ingesting
// the same content still overwrites in place.
func makeChunkKey(conversationId string, hash core.ContentHash) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", chunkPrefix, conversationId, hash))
}

// makeConvKey generates a key in the conversation index. The index maps
// conversation membership so HasConversation is a prefix probe rather
// than a full scan.
func makeConvKey(conversationId string, hash core.ContentHash) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", chunkConvPrefix, conversationId, hash))
}

// makeConvPrefix generates the scan prefix for one conversation.
func makeConvPrefix(conversationId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkConvPrefix, conversationId))
}

// makeCheckpointKey generates the key marking a conversation as ingested.
func makeCheckpointKey(conversationId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, conversationId))
}
