package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across NM, SS, and client.
// Use these keys consistently across all log statements for log
// aggregation and querying.
const (
	// Tracing
	KeyTraceID = "trace_id"

	// Component & operation
	KeyComponent = "component" // NM, SS, CLIENT
	KeyOp        = "op"        // command name: CREATE, WRITE_BEGIN, REGISTER, ...

	// File / folder identity
	KeyFilename    = "filename"
	KeyOldFilename = "old_filename"
	KeyNewFilename = "new_filename"
	KeyIsFolder    = "is_folder"
	KeyTag         = "tag" // checkpoint tag

	// Sentence-lock protocol
	KeySentenceIdx = "sentence_idx"
	KeyWordIdx     = "word_idx"

	// Identity
	KeyUser      = "user"
	KeySessionID = "session_id"
	KeyClientIP  = "client_ip"

	// SS identity / routing
	KeySSID       = "ss_id"
	KeySSIP       = "ss_ip"
	KeySSPort     = "ss_port"
	KeyIsPrimary  = "is_primary"
	KeyReplicaOf  = "replica_of"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyResult     = "result"
	KeyBytes      = "bytes"
	KeyCount      = "count"
)

// TraceID returns a slog.Attr correlating a command across NM->SS hops.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// Component returns a slog.Attr naming the process role: NM, SS, CLIENT.
func Component(c string) slog.Attr { return slog.String(KeyComponent, c) }

// Op returns a slog.Attr for the command/operation name.
func Op(name string) slog.Attr { return slog.String(KeyOp, name) }

// Filename returns a slog.Attr for the target filename.
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }

// OldFilename returns a slog.Attr for a MOVE's source path.
func OldFilename(name string) slog.Attr { return slog.String(KeyOldFilename, name) }

// NewFilename returns a slog.Attr for a MOVE's destination path.
func NewFilename(name string) slog.Attr { return slog.String(KeyNewFilename, name) }

// IsFolder returns a slog.Attr flagging a folder entry.
func IsFolder(v bool) slog.Attr { return slog.Bool(KeyIsFolder, v) }

// Tag returns a slog.Attr for a checkpoint tag.
func Tag(tag string) slog.Attr { return slog.String(KeyTag, tag) }

// SentenceIdx returns a slog.Attr for a sentence index.
func SentenceIdx(i int) slog.Attr { return slog.Int(KeySentenceIdx, i) }

// WordIdx returns a slog.Attr for a word index.
func WordIdx(i int) slog.Attr { return slog.Int(KeyWordIdx, i) }

// User returns a slog.Attr for the acting username.
func User(name string) slog.Attr { return slog.String(KeyUser, name) }

// SessionID returns a slog.Attr for the opaque per-connection session token.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// ClientIP returns a slog.Attr for the remote client address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// SSID returns a slog.Attr for a storage server's stable id.
func SSID(id string) slog.Attr { return slog.String(KeySSID, id) }

// SSEndpoint returns slog.Attrs for a storage server's routing address.
func SSEndpoint(ip string, port int) []slog.Attr {
	return []slog.Attr{slog.String(KeySSIP, ip), slog.Int(KeySSPort, port)}
}

// IsPrimary returns a slog.Attr flagging a storage server's primary role.
func IsPrimary(v bool) slog.Attr { return slog.Bool(KeyIsPrimary, v) }

// ReplicaOf returns a slog.Attr naming the SS id this one replicates.
func ReplicaOf(ssID string) slog.Attr { return slog.String(KeyReplicaOf, ssID) }

// DurationMs returns a slog.Attr for operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Result returns a slog.Attr for a command's outcome line (e.g. "OK", "ERR no access").
func Result(result string) slog.Attr { return slog.String(KeyResult, result) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// Count returns a slog.Attr for a generic item count.
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }
