package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

// Sentinel errors for the fatal not-found class. Transient storage errors
// are wrapped with context instead.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTurnNotFound         = errors.New("turn not found")
)

// timeFormat is the storage format for timestamps. Nanosecond precision
// keeps GetTurns ordering stable for turns appended in quick succession.
const timeFormat = time.RFC3339Nano

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// CreateConversation inserts a new conversation for a room and interface.
// At most one conversation exists per (roomID, interfaceType); creating a
// duplicate fails on the unique index.
func (s *Store) CreateConversation(ctx context.Context, interfaceType types.InterfaceType, roomID string, metadata map[string]string) (string, error) {
	if roomID == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	id := "conv_" + uuid.New().String()
	now := time.Now().UTC().Format(timeFormat)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, interface_type, room_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(interfaceType), roomID, string(metaJSON), now, now)

	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	return id, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrConversationNotFound if it does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, interface_type, room_id, metadata, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return conv, nil
}

// GetConversationByRoom returns the conversation ID for a room and interface
// type, or "" if none exists.
func (s *Store) GetConversationByRoom(ctx context.Context, roomID string, interfaceType types.InterfaceType) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE room_id = ? AND interface_type = ?
	`, roomID, string(interfaceType)).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query conversation by room: %w", err)
	}

	return id, nil
}

// ResolveRoomConversation resolves a room's conversation when the interface
// type is unspecified. The precedence slice is an ordered policy supplied by
// configuration: interface types are tried in order and the first match wins.
// The order is deliberate policy, not an accident of storage.
func (s *Store) ResolveRoomConversation(ctx context.Context, roomID string, precedence []types.InterfaceType) (string, error) {
	for _, ifc := range precedence {
		id, err := s.GetConversationByRoom(ctx, roomID, ifc)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}

// DeleteConversation removes a conversation together with its turns and
// summaries. Returns ErrConversationNotFound if it does not exist.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	return nil
}

// touchConversation bumps a conversation's updated_at timestamp.
// Every mutation under a conversation routes through this.
func (s *Store) touchConversation(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// TURN OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// AddTurn appends a turn to a conversation.
// Returns ErrConversationNotFound if the conversation is absent.
// The turn's query/response content is immutable once stored.
func (s *Store) AddTurn(ctx context.Context, conversationID string, turn *types.Turn) (string, error) {
	// Explicit existence check so callers get the not-found class rather
	// than an opaque foreign key violation.
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return "", err
	}

	id := turn.ID
	if id == "" {
		id = "turn_" + uuid.New().String()
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := turn.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, timestamp, query, response, user_id, user_name, state, summary_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, id, conversationID, ts.Format(timeFormat), turn.Query, turn.Response,
		nullString(turn.UserID), nullString(turn.UserName),
		string(types.TurnStateActive), string(metaJSON))

	if err != nil {
		return "", fmt.Errorf("insert turn: %w", err)
	}

	if err := s.touchConversation(ctx, conversationID); err != nil {
		return "", err
	}

	return id, nil
}

// GetTurns retrieves turns for a conversation in timestamp-ascending order.
// limit <= 0 returns all turns; offset applies simple slicing, no cursor.
func (s *Store) GetTurns(ctx context.Context, conversationID string, limit, offset int) ([]*types.Turn, error) {
	query := `
		SELECT id, conversation_id, timestamp, query, response, user_id, user_name, state, summary_id, metadata
		FROM turns
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	args := []interface{}{conversationID}

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	} else if offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []*types.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}

// GetTurn retrieves a single turn by ID.
// Returns ErrTurnNotFound if it does not exist.
func (s *Store) GetTurn(ctx context.Context, id string) (*types.Turn, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, timestamp, query, response, user_id, user_name, state, summary_id, metadata
		FROM turns
		WHERE id = ?
	`, id)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTurnNotFound, id)
		}
		return nil, fmt.Errorf("query turn: %w", err)
	}

	return turn, nil
}

// MarkTurnSummarized transitions a turn from active to summarized and records
// the summary it was folded into. This is the only permitted turn mutation and
// it is irreversible: a turn that already left the active tier is not updated.
func (s *Store) MarkTurnSummarized(ctx context.Context, turnID, summaryID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE turns
		SET state = ?, summary_id = ?
		WHERE id = ? AND state = ?
	`, string(types.TurnStateSummarized), summaryID, turnID, string(types.TurnStateActive))

	if err != nil {
		return fmt.Errorf("mark turn summarized: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s (or already summarized)", ErrTurnNotFound, turnID)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ?
		WHERE id = (SELECT conversation_id FROM turns WHERE id = ?)
	`, time.Now().UTC().Format(timeFormat), turnID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return nil
}

// TurnCounts returns the number of active and summarized turns for a
// conversation. active + summarized always equals the total turn count.
func (s *Store) TurnCounts(ctx context.Context, conversationID string) (active, summarized int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN state = 'active' THEN 1 END),
			COUNT(CASE WHEN state = 'summarized' THEN 1 END)
		FROM turns
		WHERE conversation_id = ?
	`, conversationID).Scan(&active, &summarized)

	if err != nil {
		return 0, 0, fmt.Errorf("count turns: %w", err)
	}

	return active, summarized, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUMMARY OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// AddSummary persists a new summary over a block of turns. Summaries are
// append-only; there is no update or delete short of deleting the conversation.
func (s *Store) AddSummary(ctx context.Context, summary *types.Summary) (string, error) {
	if summary.ConversationID == "" {
		return "", fmt.Errorf("summary conversation ID cannot be empty")
	}
	if _, err := s.GetConversation(ctx, summary.ConversationID); err != nil {
		return "", err
	}

	id := summary.ID
	if id == "" {
		id = "sum_" + uuid.New().String()
	}

	turnIDsJSON, err := json.Marshal(summary.TurnIDs)
	if err != nil {
		return "", fmt.Errorf("marshal turn ids: %w", err)
	}

	metadata := summary.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (id, conversation_id, content, start_turn_id, end_turn_id, turn_count, turn_ids, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, summary.ConversationID, summary.Content, summary.StartTurnID, summary.EndTurnID,
		summary.TurnCount, string(turnIDsJSON), string(metaJSON), createdAt.Format(timeFormat))

	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}

	if err := s.touchConversation(ctx, summary.ConversationID); err != nil {
		return "", err
	}

	return id, nil
}

// GetSummaries retrieves all summaries for a conversation, oldest first.
func (s *Store) GetSummaries(ctx context.Context, conversationID string) ([]*types.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, content, start_turn_id, end_turn_id, turn_count, turn_ids, metadata, created_at
		FROM summaries
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*types.Summary
	for rows.Next() {
		var sum types.Summary
		var turnIDsJSON, metaJSON, createdAt string

		if err := rows.Scan(&sum.ID, &sum.ConversationID, &sum.Content, &sum.StartTurnID,
			&sum.EndTurnID, &sum.TurnCount, &turnIDsJSON, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}

		if err := json.Unmarshal([]byte(turnIDsJSON), &sum.TurnIDs); err != nil {
			return nil, fmt.Errorf("unmarshal turn ids: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &sum.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(timeFormat, createdAt)

		summaries = append(summaries, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	return summaries, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH
// ═══════════════════════════════════════════════════════════════════════════════

// FindCriteria filters FindConversations results. Zero values mean "no filter".
type FindCriteria struct {
	InterfaceType types.InterfaceType
	RoomID        string
	Contains      string // substring match over turn query/response text
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

// FindConversations returns lightweight conversation info matching the
// criteria, most recently updated first. No turn or summary payload is loaded.
func (s *Store) FindConversations(ctx context.Context, criteria FindCriteria) ([]*types.ConversationInfo, error) {
	query := `
		SELECT c.id, c.interface_type, c.room_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id)
		FROM conversations c
		WHERE 1 = 1
	`
	var args []interface{}

	if criteria.InterfaceType != "" {
		query += " AND c.interface_type = ?"
		args = append(args, string(criteria.InterfaceType))
	}
	if criteria.RoomID != "" {
		query += " AND c.room_id = ?"
		args = append(args, criteria.RoomID)
	}
	if criteria.Contains != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM turns t
			WHERE t.conversation_id = c.id
			  AND (t.query LIKE ? OR t.response LIKE ?)
		)`
		pattern := "%" + criteria.Contains + "%"
		args = append(args, pattern, pattern)
	}
	if !criteria.Since.IsZero() {
		query += " AND c.updated_at >= ?"
		args = append(args, criteria.Since.UTC().Format(timeFormat))
	}
	if !criteria.Until.IsZero() {
		query += " AND c.updated_at <= ?"
		args = append(args, criteria.Until.UTC().Format(timeFormat))
	}

	query += " ORDER BY c.updated_at DESC"

	limit := criteria.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, criteria.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var infos []*types.ConversationInfo
	for rows.Next() {
		var info types.ConversationInfo
		var ifc, createdAt, updatedAt string

		if err := rows.Scan(&info.ID, &ifc, &info.RoomID, &createdAt, &updatedAt, &info.TurnCount); err != nil {
			return nil, fmt.Errorf("scan conversation info: %w", err)
		}

		info.InterfaceType = types.InterfaceType(ifc)
		info.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		info.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

		infos = append(infos, &info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return infos, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SCAN HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*types.Conversation, error) {
	var conv types.Conversation
	var ifc, metaJSON, createdAt, updatedAt string

	if err := row.Scan(&conv.ID, &ifc, &conv.RoomID, &metaJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	conv.InterfaceType = types.InterfaceType(ifc)
	if err := json.Unmarshal([]byte(metaJSON), &conv.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	conv.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	conv.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return &conv, nil
}

func scanTurn(row rowScanner) (*types.Turn, error) {
	var turn types.Turn
	var userID, userName, summaryID sql.NullString
	var state, metaJSON, timestamp string

	if err := row.Scan(&turn.ID, &turn.ConversationID, &timestamp, &turn.Query, &turn.Response,
		&userID, &userName, &state, &summaryID, &metaJSON); err != nil {
		return nil, err
	}

	turn.State = types.TurnState(state)
	if userID.Valid {
		turn.UserID = userID.String
	}
	if userName.Valid {
		turn.UserName = userName.String
	}
	if summaryID.Valid {
		turn.SummaryID = summaryID.String
	}
	if err := json.Unmarshal([]byte(metaJSON), &turn.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	turn.Timestamp, _ = time.Parse(timeFormat, timestamp)

	return &turn, nil
}
