package repositories

import (
	"chat-match/domain"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	SessionPrefix = "session:"
	WaitingPrefix = "waiting:"
)

// Field numbers of the session record.
const (
	fieldConnectionID     protowire.Number = 1
	fieldStatus           protowire.Number = 2
	fieldPartnerID        protowire.Number = 3
	fieldCreatedAt        protowire.Number = 4
	fieldLastTransitionAt protowire.Number = 5
)

func SessionKey(connectionID string) []byte {
	return []byte(SessionPrefix + connectionID)
}

// WaitingKey is the FIFO index entry of a waiting session.
// The key is formatted as "waiting:{created_at_padded}:{connection_id}" so that a
// forward prefix scan yields the oldest waiter first and equal timestamps fall
// back to connection id ordering.
func WaitingKey(s domain.Session) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", WaitingPrefix, s.CreatedAt.UnixNano(), s.ConnectionID))
}

// ConnectionIDFromWaitingKey extracts the connection id of a waiting index key.
func ConnectionIDFromWaitingKey(key []byte) (string, bool) {
	rest, ok := strings.CutPrefix(string(key), WaitingPrefix)
	if !ok {
		return "", false
	}
	_, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EncodeSession serializes a session using the protobuf wire format.
func EncodeSession(s domain.Session) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldConnectionID, protowire.BytesType)
	b = protowire.AppendString(b, s.ConnectionID)
	b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Status))
	if s.PartnerID != "" {
		b = protowire.AppendTag(b, fieldPartnerID, protowire.BytesType)
		b = protowire.AppendString(b, s.PartnerID)
	}
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.CreatedAt.UnixNano()))
	b = protowire.AppendTag(b, fieldLastTransitionAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.LastTransitionAt.UnixNano()))
	return b
}

// DecodeSession is the inverse of EncodeSession. Unknown fields are skipped.
func DecodeSession(b []byte) (domain.Session, error) {
	var s domain.Session
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Session{}, fmt.Errorf("decode session tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldConnectionID && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			s.ConnectionID = v
		case num == fieldStatus && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			s.Status = domain.Status(v)
		case num == fieldPartnerID && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			s.PartnerID = v
		case num == fieldCreatedAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			s.CreatedAt = time.Unix(0, int64(v)).UTC()
		case num == fieldLastTransitionAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			s.LastTransitionAt = time.Unix(0, int64(v)).UTC()
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return domain.Session{}, fmt.Errorf("decode session field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if s.ConnectionID == "" {
		return domain.Session{}, fmt.Errorf("decode session: missing connection id")
	}
	return s, nil
}
